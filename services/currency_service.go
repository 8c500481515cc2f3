package services

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	config "github.com/maximusartimus/am-marketplace-sub000/configs"
)

type ExchangeRateResponse struct {
	Result          string             `json:"result"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

var (
	ratesCache    map[string]float64
	cacheMutex    sync.RWMutex
	lastFetchTime time.Time
)

// FetchRates returns USD-based conversion rates, refreshed at most every
// six hours.
func FetchRates() (map[string]float64, error) {
	cacheMutex.RLock()
	if time.Since(lastFetchTime) < 6*time.Hour && ratesCache != nil {
		cacheMutex.RUnlock()
		return ratesCache, nil
	}
	cacheMutex.RUnlock()

	apiKey := config.Config("EXCHANGE_RATE_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("exchange rate API key not configured")
	}

	url := fmt.Sprintf("https://v6.exchangerate-api.com/v6/%s/latest/USD", apiKey)
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange rates: %w", err)
	}
	defer resp.Body.Close()

	var rateResponse ExchangeRateResponse
	if err := json.NewDecoder(resp.Body).Decode(&rateResponse); err != nil {
		return nil, fmt.Errorf("failed to decode exchange rates: %w", err)
	}
	if rateResponse.Result != "success" {
		return nil, fmt.Errorf("exchange rate API returned %q", rateResponse.Result)
	}

	cacheMutex.Lock()
	ratesCache = rateResponse.ConversionRates
	lastFetchTime = time.Now()
	cacheMutex.Unlock()

	log.Println("✅ Exchange rates refreshed")
	return rateResponse.ConversionRates, nil
}

// ConvertAmount converts between two ISO currency codes through the USD
// base rates.
func ConvertAmount(amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}

	rates, err := FetchRates()
	if err != nil {
		return 0, err
	}

	fromRate, ok := rates[from]
	if !ok || fromRate == 0 {
		return 0, fmt.Errorf("unknown currency %q", from)
	}
	toRate, ok := rates[to]
	if !ok {
		return 0, fmt.Errorf("unknown currency %q", to)
	}

	return amount / fromRate * toRate, nil
}
