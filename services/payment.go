package services

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"go-storefront/models"
	"go-storefront/pricing"
	"go-storefront/store"
	"go-storefront/utils"
)

// PayHere reports a completed payment with status code 2
const statusCodeSuccess = 2

const defaultCountry = "Sri Lanka"

// PaymentNotification carries the gateway fields exactly as received
type PaymentNotification struct {
	MerchantID    string `json:"merchant_id"`
	OrderID       string `json:"order_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	StatusCode    string `json:"status_code"`
	MD5Sig        string `json:"md5sig"`
	Items         string `json:"items"`
	CustomerEmail string `json:"customer_email"`
	Address       string `json:"address"`
	Address2      string `json:"address2"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

// WebhookOutcome describes what a notification did
type WebhookOutcome string

const (
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeCreated   WebhookOutcome = "created"
	OutcomeDuplicate WebhookOutcome = "duplicate"
)

// PaymentService turns gateway notifications into paid orders, at most once
// per gateway order id.
type PaymentService struct {
	orders         *OrderService
	products       store.ProductStore
	merchantID     string
	merchantSecret string
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService. An empty secret disables
// signature verification.
func NewPaymentService(orders *OrderService, products store.ProductStore, merchantID, merchantSecret string, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		orders:         orders,
		products:       products,
		merchantID:     merchantID,
		merchantSecret: merchantSecret,
		logger:         logger,
	}
}

// HandleNotification verifies and applies one gateway notification
func (s *PaymentService) HandleNotification(ctx context.Context, n PaymentNotification) (models.Order, WebhookOutcome, error) {
	statusCode, err := strconv.Atoi(strings.TrimSpace(n.StatusCode))
	if err != nil {
		return models.Order{}, "", utils.WebhookParseError("invalid status_code %q", n.StatusCode)
	}
	if err := s.verify(n); err != nil {
		return models.Order{}, "", err
	}
	if statusCode != statusCodeSuccess {
		s.logger.Info("payment notification ignored",
			zap.String("gateway_order_id", n.OrderID),
			zap.Int("status_code", statusCode))
		return models.Order{}, OutcomeIgnored, nil
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(n.Amount), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return models.Order{}, "", utils.WebhookParseError("invalid amount %q", n.Amount)
	}
	parsed := ParseItems(n.Items)
	if len(parsed) == 0 {
		return models.Order{}, "", utils.WebhookParseError("items are required")
	}
	gatewayOrderID := strings.TrimSpace(n.OrderID)
	if gatewayOrderID == "" {
		gatewayOrderID = derivedOrderID(n, amount)
	}

	if existing, ok, err := s.orders.FindByGatewayID(ctx, gatewayOrderID); err != nil {
		return models.Order{}, "", err
	} else if ok {
		s.logger.Info("duplicate payment notification", zap.String("gateway_order_id", gatewayOrderID))
		return existing, OutcomeDuplicate, nil
	}

	items, err := s.snapshotItems(ctx, parsed)
	if err != nil {
		return models.Order{}, "", err
	}

	user := strings.TrimSpace(n.CustomerEmail)
	if user == "" {
		user = "guest"
	}
	country := strings.TrimSpace(n.Country)
	if country == "" {
		country = defaultCountry
	}
	order := models.Order{
		User:  user,
		Items: items,
		ShippingAddress: models.ShippingAddress{
			Line1:      n.Address,
			Line2:      n.Address2,
			City:       n.City,
			State:      n.State,
			PostalCode: n.PostalCode,
			Country:    country,
		},
		TotalPrice: amount,
		Payment: &models.Payment{
			Method:         "payhere",
			GatewayOrderID: gatewayOrderID,
			Amount:         amount,
			Currency:       n.Currency,
			StatusCode:     statusCode,
		},
	}

	stored, created, err := s.orders.RecordPaidOrder(ctx, order)
	if err != nil {
		return models.Order{}, "", err
	}
	if !created {
		return stored, OutcomeDuplicate, nil
	}
	return stored, OutcomeCreated, nil
}

// snapshotItems prices each item from the catalog product of the same name.
// Unknown names are kept at price 0; the order total is the paid amount.
func (s *PaymentService) snapshotItems(ctx context.Context, parsed []ParsedItem) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(parsed))
	for _, p := range parsed {
		item := models.OrderItem{Name: p.Name, Qty: p.Qty}
		product, err := s.products.FindProductByName(ctx, p.Name)
		if p.Raw != p.Name {
			// "Runner x2" may be a product name rather than two Runners
			whole, rawErr := s.products.FindProductByName(ctx, p.Raw)
			switch {
			case rawErr == nil:
				item = models.OrderItem{Name: p.Raw, Qty: 1}
				product, err = whole, nil
			case !errors.Is(rawErr, store.ErrNotFound):
				return nil, utils.PersistenceError("Error loading product", rawErr)
			}
		}
		switch {
		case err == nil:
			id := product.ID
			item.ProductID = &id
			item.Price = pricing.NewLine(product.Price, product.Discount, item.Qty).UnitPrice().InexactFloat64()
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("paid item not in catalog", zap.String("name", item.Name))
		default:
			return nil, utils.PersistenceError("Error loading product", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// derivedOrderID stands in for a missing order_id. Redeliveries of the same
// notification hash to the same key, so they still dedupe.
func derivedOrderID(n PaymentNotification, amount float64) string {
	fields := []string{
		strings.TrimSpace(n.MerchantID),
		strings.TrimSpace(n.StatusCode),
		strings.TrimSpace(n.Items),
		fmt.Sprintf("%.2f", amount),
		strings.ToUpper(strings.TrimSpace(n.Currency)),
		strings.ToLower(strings.TrimSpace(n.CustomerEmail)),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x00")))
	return "derived-" + hex.EncodeToString(sum[:16])
}

// verify checks the PayHere md5sig when a merchant secret is configured:
// UPPER(MD5(merchant_id + order_id + amount + currency + status_code + UPPER(MD5(secret))))
func (s *PaymentService) verify(n PaymentNotification) error {
	if s.merchantSecret == "" {
		return nil
	}
	if s.merchantID != "" && n.MerchantID != s.merchantID {
		return utils.UnauthorizedError("unknown merchant")
	}
	expected := Signature(n.MerchantID, n.OrderID, n.Amount, n.Currency, n.StatusCode, s.merchantSecret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(n.MD5Sig))) != 1 {
		return utils.UnauthorizedError("invalid payment signature")
	}
	return nil
}

// Signature computes the PayHere notification signature
func Signature(merchantID, orderID, amount, currency, statusCode, secret string) string {
	hashedSecret := upperMD5(secret)
	return upperMD5(merchantID + orderID + amount + currency + statusCode + hashedSecret)
}

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// ParsedItem is one entry of the gateway item description. Raw is the entry
// before any " xN" suffix was split off.
type ParsedItem struct {
	Name string
	Qty  int
	Raw  string
}

var quantitySuffix = regexp.MustCompile(`^(.*\S)\s+x(\d+)$`)

// ParseItems splits "Shoe X, Shoe Y x2" into named items. Entries without an
// " xN" suffix count once.
func ParseItems(description string) []ParsedItem {
	var items []ParsedItem
	for _, raw := range strings.Split(description, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		qty := 1
		if m := quantitySuffix.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
				name, qty = m[1], n
			}
		}
		items = append(items, ParsedItem{Name: name, Qty: qty, Raw: strings.TrimSpace(raw)})
	}
	return items
}
