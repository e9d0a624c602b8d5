package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	targetURL   string
	accountID   string
	requests    int
	amount      string
	balance     string
	creditLimit string
	retries     int
	timeout     time.Duration
)

var (
	succeeded atomic.Uint64
	failed    atomic.Uint64
	retryable atomic.Uint64
	errored   atomic.Uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API base URL")
	flag.StringVar(&accountID, "account", "", "Account to debit; a fresh one is created when empty")
	flag.IntVar(&requests, "requests", 200, "Number of concurrent debits")
	flag.StringVar(&amount, "amount", "10.00", "Amount of every debit")
	flag.StringVar(&balance, "balance", "1000.00", "Initial balance of a created account")
	flag.StringVar(&creditLimit, "credit-limit", "500.00", "Credit limit of a created account")
	flag.IntVar(&retries, "retries", 3, "Retries per debit after a retryable 503")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
}

type transactionResponse struct {
	Status    string `json:"status"`
	Balance   string `json:"balance"`
	ErrorCode string `json:"error_code"`
}

func main() {
	flag.Parse()
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	client := &http.Client{Timeout: timeout}

	if accountID == "" {
		id, err := createAccount(client)
		if err != nil {
			logger.Fatal("create account failed", zap.Error(err))
		}
		accountID = id
	}
	logger.Info("starting load test", zap.String("account_id", accountID), zap.Int("requests", requests), zap.String("amount", amount))

	runID := uuid.NewString()[:8]
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func(i int) {
			defer wg.Done()
			debit(client, fmt.Sprintf("load-%s-%d", runID, i))
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	finalBalance, err := fetchBalance(client)
	if err != nil {
		logger.Error("fetch final balance failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"account_id":     accountID,
		"requests":       requests,
		"duration_sec":   elapsed.Seconds(),
		"succeeded":      succeeded.Load(),
		"failed":         failed.Load(),
		"retryable_503":  retryable.Load(),
		"errors":         errored.Load(),
		"final_balance":  finalBalance,
		"throughput_tps": float64(requests) / elapsed.Seconds(),
	})
}

func debit(client *http.Client, referenceID string) {
	body, _ := json.Marshal(map[string]any{
		"operation":    "debit",
		"account_id":   accountID,
		"amount":       amount,
		"reference_id": referenceID,
	})

	for attempt := 0; attempt <= retries; attempt++ {
		resp, err := client.Post(targetURL+"/v1/transactions", "application/json", bytes.NewReader(body))
		if err != nil {
			errored.Add(1)
			return
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var out transactionResponse
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				errored.Add(1)
				return
			}
			if out.Status == "success" {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			return
		case http.StatusServiceUnavailable:
			resp.Body.Close()
			retryable.Add(1)
			time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
		default:
			resp.Body.Close()
			errored.Add(1)
			return
		}
	}
}

func createAccount(client *http.Client) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"client_id":       uuid.NewString(),
		"client_name":     "load test",
		"initial_balance": balance,
		"credit_limit":    creditLimit,
	})
	resp, err := client.Post(targetURL+"/v1/accounts", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode account: %w", err)
	}
	return out.AccountID, nil
}

func fetchBalance(client *http.Client) (string, error) {
	resp, err := client.Get(targetURL + "/v1/accounts/" + accountID)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out struct {
		Balance string `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode account: %w", err)
	}
	return out.Balance, nil
}
