package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fluteatelier/api/internal/platform/httpx"
	"github.com/fluteatelier/api/internal/platform/pagination"
	"github.com/fluteatelier/api/internal/services"
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is empty")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

func decodeJSONBody(r *http.Request, limit int64, target any) error {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.New("invalid JSON payload")
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return formatTime(*t)
}

func parseRFC3339(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func isJSONNull(value json.RawMessage) bool {
	return strings.TrimSpace(string(value)) == "null"
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// parsePager extracts pageSize/pageToken query parameters into the shared
// pagination shape used by every listing endpoint.
func parsePager(r *http.Request) (services.Pagination, error) {
	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	})
	if err != nil {
		return services.Pagination{}, err
	}
	return services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken}, nil
}

type addressPayload struct {
	ID         string `json:"id,omitempty"`
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
	IsDefault  bool   `json:"isDefault"`
}

func buildAddressPayload(addr services.Address) addressPayload {
	payload := addressPayload{
		ID:         addr.ID,
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		City:       addr.City,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		IsDefault:  addr.IsDefault,
	}
	if addr.Line2 != nil {
		payload.Line2 = *addr.Line2
	}
	if addr.State != nil {
		payload.State = *addr.State
	}
	if addr.Phone != nil {
		payload.Phone = *addr.Phone
	}
	return payload
}

func addressFromPayload(payload addressPayload) services.Address {
	addr := services.Address{
		ID:         strings.TrimSpace(payload.ID),
		Recipient:  payload.Recipient,
		Line1:      payload.Line1,
		City:       payload.City,
		PostalCode: payload.PostalCode,
		Country:    payload.Country,
		IsDefault:  payload.IsDefault,
	}
	if v := strings.TrimSpace(payload.Line2); v != "" {
		addr.Line2 = &v
	}
	if v := strings.TrimSpace(payload.State); v != "" {
		addr.State = &v
	}
	if v := strings.TrimSpace(payload.Phone); v != "" {
		addr.Phone = &v
	}
	return addr
}

type productPayload struct {
	ID                   string   `json:"id"`
	Slug                 string   `json:"slug"`
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	ProductType          string   `json:"productType"`
	Price                int64    `json:"price"`
	MRP                  int64    `json:"mrp,omitempty"`
	ShippingCostOverride int64    `json:"shippingCostOverride,omitempty"`
	Images               []string `json:"images,omitempty"`
	Stock                int      `json:"stock"`
	IsActive             bool     `json:"isActive"`
	CreatedAt            string   `json:"createdAt,omitempty"`
	UpdatedAt            string   `json:"updatedAt,omitempty"`
}

func buildProductPayload(product services.Product) productPayload {
	payload := productPayload{
		ID:                   product.ID,
		Slug:                 product.Slug,
		Name:                 product.Name,
		Description:          product.Description,
		ProductType:          product.ProductType,
		Price:                product.Price,
		MRP:                  product.MRP,
		ShippingCostOverride: product.ShippingCostOverride,
		Images:               product.Images,
		Stock:                product.Stock,
		IsActive:             product.IsActive,
	}
	if !product.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(product.CreatedAt)
	}
	if !product.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(product.UpdatedAt)
	}
	return payload
}

type customizationOptionPayload struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	PriceChange int64  `json:"priceChange,omitempty"`
}

type customizationPayload struct {
	ID           string                       `json:"id"`
	Label        string                       `json:"label"`
	Type         string                       `json:"type"`
	Options      []customizationOptionPayload `json:"options,omitempty"`
	ProductTypes []string                     `json:"productTypes,omitempty"`
	Position     int                          `json:"position"`
}

func buildCustomizationPayload(cfg services.CustomizationConfig) customizationPayload {
	payload := customizationPayload{
		ID:           cfg.ID,
		Label:        cfg.Label,
		Type:         string(cfg.Type),
		ProductTypes: cfg.ProductTypes,
		Position:     cfg.Position,
	}
	for _, opt := range cfg.Options {
		payload.Options = append(payload.Options, customizationOptionPayload{
			Value:       opt.Value,
			Label:       opt.Label,
			PriceChange: opt.PriceChange,
		})
	}
	return payload
}

type couponPayload struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	Description    string `json:"description,omitempty"`
	DiscountType   string `json:"discountType"`
	DiscountValue  int64  `json:"discountValue"`
	MinOrderAmount int64  `json:"minOrderAmount,omitempty"`
	MaxUsesPerUser int    `json:"maxUsesPerUser,omitempty"`
	ValidFrom      string `json:"validFrom,omitempty"`
	ValidUntil     string `json:"validUntil,omitempty"`
	IsActive       bool   `json:"isActive"`
	IsHidden       bool   `json:"isHidden"`
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	return couponPayload{
		ID:             coupon.ID,
		Code:           coupon.Code,
		Description:    coupon.Description,
		DiscountType:   string(coupon.DiscountType),
		DiscountValue:  coupon.DiscountValue,
		MinOrderAmount: coupon.MinOrderAmount,
		MaxUsesPerUser: coupon.MaxUsesPerUser,
		ValidFrom:      formatTimePtr(coupon.ValidFrom),
		ValidUntil:     formatTimePtr(coupon.ValidUntil),
		IsActive:       coupon.IsActive,
		IsHidden:       coupon.IsHidden,
	}
}

type homepageSectionPayload struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Kind       string   `json:"kind"`
	BodyHTML   string   `json:"bodyHtml,omitempty"`
	ProductIDs []string `json:"productIds,omitempty"`
	Position   int      `json:"position"`
	IsVisible  bool     `json:"isVisible"`
}

func buildHomepageSectionPayload(section services.HomepageSection) homepageSectionPayload {
	return homepageSectionPayload{
		ID:         section.ID,
		Title:      section.Title,
		Kind:       section.Kind,
		BodyHTML:   section.BodyHTML,
		ProductIDs: section.ProductIDs,
		Position:   section.Position,
		IsVisible:  section.IsVisible,
	}
}

type cartEstimatePayload struct {
	Subtotal        int64 `json:"subtotal"`
	TotalMRP        int64 `json:"totalMrp"`
	ProductDiscount int64 `json:"productDiscount"`
	ShippingFee     int64 `json:"shippingFee"`
	CouponDiscount  int64 `json:"couponDiscount"`
	GrandTotal      int64 `json:"grandTotal"`
}

type cartCouponPayload struct {
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discountAmount"`
	Applied        bool   `json:"applied"`
}

type cartItemPayload struct {
	ID             string         `json:"id"`
	ProductID      string         `json:"productId"`
	Quantity       int            `json:"quantity"`
	Customizations map[string]any `json:"customizations,omitempty"`
	AddedAt        string         `json:"addedAt,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
}

type cartPayload struct {
	ID                string               `json:"id"`
	UserID            string               `json:"userId"`
	Currency          string               `json:"currency"`
	Items             []cartItemPayload    `json:"items"`
	ItemsCount        int                  `json:"itemsCount"`
	Coupon            *cartCouponPayload   `json:"coupon,omitempty"`
	ShippingAddressID string               `json:"shippingAddressId,omitempty"`
	ShippingAddress   *addressPayload      `json:"shippingAddress,omitempty"`
	Estimate          *cartEstimatePayload `json:"estimate,omitempty"`
	UpdatedAt         string               `json:"updatedAt,omitempty"`
}

func buildCartPayload(cart services.Cart) cartPayload {
	payload := cartPayload{
		ID:                cart.ID,
		UserID:            cart.UserID,
		Currency:          strings.ToUpper(cart.Currency),
		Items:             []cartItemPayload{},
		ItemsCount:        len(cart.Items),
		ShippingAddressID: cart.ShippingAddressID,
	}
	for _, item := range cart.Items {
		entry := cartItemPayload{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			Customizations: cloneMap(item.Customizations),
		}
		if !item.AddedAt.IsZero() {
			entry.AddedAt = formatTime(item.AddedAt)
		}
		if item.UpdatedAt != nil && !item.UpdatedAt.IsZero() {
			entry.UpdatedAt = formatTime(*item.UpdatedAt)
		}
		payload.Items = append(payload.Items, entry)
	}
	if cart.Coupon != nil {
		payload.Coupon = &cartCouponPayload{
			Code:           cart.Coupon.Code,
			DiscountAmount: cart.Coupon.DiscountAmount,
			Applied:        cart.Coupon.Applied,
		}
	}
	if cart.ShippingAddress != nil {
		addr := buildAddressPayload(*cart.ShippingAddress)
		payload.ShippingAddress = &addr
	}
	if cart.Estimate != nil {
		payload.Estimate = &cartEstimatePayload{
			Subtotal:        cart.Estimate.Subtotal,
			TotalMRP:        cart.Estimate.TotalMRP,
			ProductDiscount: cart.Estimate.ProductDiscount,
			ShippingFee:     cart.Estimate.ShippingFee,
			CouponDiscount:  cart.Estimate.CouponDiscount,
			GrandTotal:      cart.Estimate.GrandTotal,
		}
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

type orderSummaryPayload struct {
	Subtotal        int64  `json:"subtotal"`
	TotalMRP        int64  `json:"totalMrp"`
	ProductDiscount int64  `json:"productDiscount"`
	ShippingFee     int64  `json:"shippingFee"`
	CouponDiscount  int64  `json:"couponDiscount"`
	CouponCode      string `json:"couponCode,omitempty"`
	TotalDiscount   int64  `json:"totalDiscount"`
	GrandTotal      int64  `json:"grandTotal"`
	PaymentMethod   string `json:"paymentMethod"`
}

type orderLinePayload struct {
	ProductID      string         `json:"productId"`
	Name           string         `json:"name"`
	ProductType    string         `json:"productType,omitempty"`
	Quantity       int            `json:"quantity"`
	UnitPrice      int64          `json:"unitPrice"`
	UnitMRP        int64          `json:"unitMrp,omitempty"`
	Customizations map[string]any `json:"customizations,omitempty"`
	Total          int64          `json:"total"`
}

type statusHistoryPayload struct {
	Status  string `json:"status"`
	At      string `json:"at"`
	Comment string `json:"comment,omitempty"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	UserID          string                 `json:"userId"`
	Currency        string                 `json:"currency"`
	Status          string                 `json:"status"`
	StatusHistory   []statusHistoryPayload `json:"statusHistory"`
	Items           []orderLinePayload     `json:"items"`
	Summary         orderSummaryPayload    `json:"summary"`
	ShippingAddress *addressPayload        `json:"shippingAddress,omitempty"`
	ContactEmail    string                 `json:"contactEmail,omitempty"`
	ContactPhone    string                 `json:"contactPhone,omitempty"`
	PaymentRef      string                 `json:"paymentRef,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
	CancelReason    string                 `json:"cancelReason,omitempty"`
	PlacedAt        string                 `json:"placedAt,omitempty"`
	DeliveredAt     string                 `json:"deliveredAt,omitempty"`
	CancelledAt     string                 `json:"cancelledAt,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Currency:      strings.ToUpper(order.Currency),
		Status:        string(order.Status),
		StatusHistory: []statusHistoryPayload{},
		Items:         []orderLinePayload{},
		Summary: orderSummaryPayload{
			Subtotal:        order.Summary.Subtotal,
			TotalMRP:        order.Summary.TotalMRP,
			ProductDiscount: order.Summary.ProductDiscount,
			ShippingFee:     order.Summary.ShippingFee,
			CouponDiscount:  order.Summary.CouponDiscount,
			CouponCode:      order.Summary.CouponCode,
			TotalDiscount:   order.Summary.TotalDiscount,
			GrandTotal:      order.Summary.GrandTotal,
			PaymentMethod:   string(order.Summary.PaymentMethod),
		},
		PaymentRef: order.PaymentRef,
		Notes:      order.Notes,
	}
	for _, entry := range order.StatusHistory {
		payload.StatusHistory = append(payload.StatusHistory, statusHistoryPayload{
			Status:  string(entry.Status),
			At:      formatTime(entry.At),
			Comment: entry.Comment,
		})
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderLinePayload{
			ProductID:      item.ProductID,
			Name:           item.Name,
			ProductType:    item.ProductType,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			UnitMRP:        item.UnitMRP,
			Customizations: cloneMap(item.Customizations),
			Total:          item.Total,
		})
	}
	if order.ShippingAddress != nil {
		addr := buildAddressPayload(*order.ShippingAddress)
		payload.ShippingAddress = &addr
	}
	if order.Contact != nil {
		payload.ContactEmail = order.Contact.Email
		payload.ContactPhone = order.Contact.Phone
	}
	if order.CancelReason != nil {
		payload.CancelReason = *order.CancelReason
	}
	if !order.PlacedAt.IsZero() {
		payload.PlacedAt = formatTime(order.PlacedAt)
	}
	payload.DeliveredAt = formatTimePtr(order.DeliveredAt)
	payload.CancelledAt = formatTimePtr(order.CancelledAt)
	return payload
}

type reviewReplyPayload struct {
	Message   string `json:"message"`
	AuthorRef string `json:"authorRef,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type reviewPayload struct {
	ID        string              `json:"id"`
	ProductID string              `json:"productId"`
	OrderID   string              `json:"orderId,omitempty"`
	UserID    string              `json:"userId"`
	Rating    int                 `json:"rating"`
	Comment   string              `json:"comment,omitempty"`
	Status    string              `json:"status"`
	Reply     *reviewReplyPayload `json:"reply,omitempty"`
	CreatedAt string              `json:"createdAt,omitempty"`
}

func buildReviewPayload(review services.Review) reviewPayload {
	payload := reviewPayload{
		ID:        review.ID,
		ProductID: review.ProductID,
		OrderID:   review.OrderID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		Status:    string(review.Status),
	}
	if review.Reply != nil && review.Reply.Visible {
		payload.Reply = &reviewReplyPayload{
			Message:   review.Reply.Message,
			AuthorRef: review.Reply.AuthorRef,
			CreatedAt: formatTime(review.Reply.CreatedAt),
		}
	}
	if !review.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(review.CreatedAt)
	}
	return payload
}

type userProfilePayload struct {
	ID                string          `json:"id"`
	DisplayName       string          `json:"displayName,omitempty"`
	Email             string          `json:"email,omitempty"`
	PhoneNumber       string          `json:"phoneNumber,omitempty"`
	PhotoURL          string          `json:"photoUrl,omitempty"`
	PreferredLanguage string          `json:"preferredLanguage,omitempty"`
	Roles             []string        `json:"roles,omitempty"`
	IsActive          bool            `json:"isActive"`
	NotificationPrefs map[string]bool `json:"notificationPrefs,omitempty"`
	CreatedAt         string          `json:"createdAt,omitempty"`
}

func buildUserProfilePayload(profile services.UserProfile) userProfilePayload {
	payload := userProfilePayload{
		ID:                profile.ID,
		DisplayName:       profile.DisplayName,
		Email:             profile.Email,
		PhoneNumber:       profile.PhoneNumber,
		PhotoURL:          profile.PhotoURL,
		PreferredLanguage: profile.PreferredLanguage,
		Roles:             profile.Roles,
		IsActive:          profile.IsActive,
		NotificationPrefs: profile.NotificationPrefs,
	}
	if !profile.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(profile.CreatedAt)
	}
	return payload
}
