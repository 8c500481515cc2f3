package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"time"

	config "github.com/maximusartimus/am-marketplace-sub000/configs"
	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// GenerateCatalogPDF renders a store's active listings into a printable
// catalog, uploads the PDF and records the URL on the store. The seller
// gets an in-app notification when it's ready.
func GenerateCatalogPDF(store models.Store) error {
	htmlData, err := generateCatalogHTML(store)
	if err != nil {
		return fmt.Errorf("failed to render catalog HTML: %w", err)
	}

	pdfBytes, err := generatePDFFromHTML(htmlData)
	if err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}

	uploadURL, err := uploadCatalogToCloudinary(pdfBytes, store.ID.String())
	if err != nil {
		return fmt.Errorf("failed to upload catalog: %w", err)
	}

	if err := database.DB.Model(&models.Store{}).
		Where("id = ?", store.ID).
		Update("catalog_url", uploadURL).Error; err != nil {
		return fmt.Errorf("failed to save catalog URL: %w", err)
	}

	notification := models.Notification{
		RecipientID: store.OwnerID,
		Kind:        "catalog_ready",
		Preview:     store.Name,
		Link:        uploadURL,
	}
	if err := database.DB.Create(&notification).Error; err != nil {
		log.Printf("Failed to notify store owner %s about catalog: %v", store.OwnerID, err)
	}

	log.Printf("✅ Generated catalog for store %s (%d listings)", store.Slug, len(store.Listings))
	return nil
}

func generateCatalogHTML(store models.Store) (string, error) {
	tmpl, err := template.ParseFiles("templates/catalog.html")
	if err != nil {
		return "", err
	}

	data := struct {
		Store       models.Store
		GeneratedAt string
	}{
		Store:       store,
		GeneratedAt: time.Now().Format("January 2, 2006"),
	}

	var renderedHTML bytes.Buffer
	if err := tmpl.Execute(&renderedHTML, data); err != nil {
		return "", err
	}
	return renderedHTML.String(), nil
}

func generatePDFFromHTML(htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

func uploadCatalogToCloudinary(fileBytes []byte, storeID string) (string, error) {
	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	uploadParams := uploader.UploadParams{
		PublicID:     fmt.Sprintf("catalogs/%s_%s", storeID, uuid.New().String()),
		Folder:       "marketplace_catalogs",
		ResourceType: "raw",
	}

	uploadResult, err := cld.Upload.Upload(ctx, bytes.NewReader(fileBytes), uploadParams)
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
