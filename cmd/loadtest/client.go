package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Шаги сценария продажи.
const (
	stepOpen     = "OpenSession"
	stepClear    = "ClearCart"
	stepAdd      = "AddItem"
	stepAdjust   = "AdjustItem"
	stepCheckout = "Checkout"
	stepCatalog  = "ReloadCatalog"
)

const codeSettlementIncomplete = "settlement_incomplete"

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details *struct {
			Reconciled bool `json:"reconciled"`
		} `json:"details,omitempty"`
	} `json:"error"`
}

type catalogResponse struct {
	Products []struct {
		ID    string `json:"id"`
		Stock int    `json:"stock"`
	} `json:"products"`
}

// till: одна касса со своей сессией и токеном.
type till struct {
	baseURL   string
	client    *http.Client
	token     string
	userAgent string
	timeout   time.Duration
	col       *collector

	sessionID string
}

// call выполняет запрос и возвращает статус и тело ответа. Статус 0 означает сетевую ошибку.
func (t *till) call(step, method, path string, body any, headers map[string]string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("User-Agent", t.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.col.record(step, time.Since(start), 0)
		return 0, nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	t.col.record(step, time.Since(start), resp.StatusCode)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}

func (t *till) open(sellerID string) error {
	var body any
	if sellerID != "" {
		body = map[string]string{"seller_id": sellerID}
	}
	status, payload, err := t.call(stepOpen, http.MethodPost, "/v1/sessions", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("open session: status %d: %s", status, strings.TrimSpace(string(payload)))
	}
	var session struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &session); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	if session.ID == "" {
		return fmt.Errorf("open session returned empty id")
	}
	t.sessionID = session.ID
	return nil
}

func (t *till) path(suffix string) string {
	return "/v1/sessions/" + t.sessionID + suffix
}

// stock перезагружает каталог и возвращает остаток товара. Товар без остатка в каталог не попадает.
func (t *till) stock(productID string) (int, error) {
	status, payload, err := t.call(stepCatalog, http.MethodGet, t.path("/catalog?reload=true"), nil, nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("reload catalog: status %d", status)
	}
	var catalog catalogResponse
	if err := json.Unmarshal(payload, &catalog); err != nil {
		return 0, fmt.Errorf("decode catalog: %w", err)
	}
	for _, p := range catalog.Products {
		if p.ID == productID {
			return p.Stock, nil
		}
	}
	return 0, nil
}

// saleResult: исход одной продажи. Reconciled=false у partial означает,
// что компенсация прошла не полностью.
type saleResult struct {
	Outcome    string
	Units      int
	Reconciled bool
}

// sale проводит одну продажу: очистка корзины, добавление товара, расчёт.
func (t *till) sale(cfg config, key string) saleResult {
	status, _, err := t.call(stepClear, http.MethodDelete, t.path("/cart"), nil, nil)
	if err != nil || status != http.StatusOK {
		return classify(status, nil)
	}

	status, payload, err := t.call(stepAdd, http.MethodPost, t.path("/cart/items"), map[string]string{"product_id": cfg.productID}, nil)
	if err != nil || status != http.StatusOK {
		return classify(status, payload)
	}
	if cfg.quantity > 1 {
		status, payload, err = t.call(stepAdjust, http.MethodPatch, t.path("/cart/items/"+cfg.productID), map[string]int{"delta": cfg.quantity - 1}, nil)
		if err != nil || status != http.StatusOK {
			return classify(status, payload)
		}
	}

	status, payload, err = t.call(stepCheckout, http.MethodPost, t.path("/checkout"),
		map[string]string{"payment_method": cfg.paymentMethod},
		map[string]string{"Idempotency-Key": key})
	if err != nil {
		return saleResult{Outcome: outcomeFailed, Reconciled: true}
	}
	result := classify(status, payload)
	if result.Outcome == outcomeSuccess {
		var order struct {
			ItemCount int `json:"item_count"`
		}
		if json.Unmarshal(payload, &order) == nil {
			result.Units = order.ItemCount
		}
	}
	return result
}

func classify(status int, payload []byte) saleResult {
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		return saleResult{Outcome: outcomeSuccess, Reconciled: true}
	case status == http.StatusUnprocessableEntity:
		return saleResult{Outcome: outcomeValidation, Reconciled: true}
	case status == http.StatusConflict:
		return saleResult{Outcome: outcomeConflict, Reconciled: true}
	case status == http.StatusInternalServerError:
		var body apiError
		if json.Unmarshal(payload, &body) == nil && body.Error.Code == codeSettlementIncomplete {
			reconciled := body.Error.Details != nil && body.Error.Details.Reconciled
			return saleResult{Outcome: outcomePartial, Reconciled: reconciled}
		}
	}
	return saleResult{Outcome: outcomeFailed, Reconciled: true}
}
