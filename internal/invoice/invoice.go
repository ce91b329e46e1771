// Package invoice turns an order into a downloadable document.
package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Skotchmaster/marketplace/internal/models"
)

type Document struct {
	Order         *models.Order
	CustomerName  string
	CustomerEmail string
}

type Rendered struct {
	ContentType string
	Filename    string
	Body        []byte
}

type Renderer interface {
	Render(ctx context.Context, doc Document) (*Rendered, error)
}

// TextRenderer produces a plain-text invoice when no rendering service is configured.
type TextRenderer struct {
	StoreName string
}

func (r TextRenderer) Render(_ context.Context, doc Document) (*Rendered, error) {
	o := doc.Order
	if o == nil {
		return nil, fmt.Errorf("invoice: nil order")
	}

	var buf bytes.Buffer
	if r.StoreName != "" {
		fmt.Fprintln(&buf, r.StoreName)
	}
	fmt.Fprintf(&buf, "INVOICE #%s\n\n", o.ID)
	fmt.Fprintf(&buf, "Order Date:       %s\n", o.CreatedAt.UTC().Format("2006-01-02 15:04"))
	if doc.CustomerName != "" {
		fmt.Fprintf(&buf, "Customer:         %s\n", doc.CustomerName)
	}
	if doc.CustomerEmail != "" {
		fmt.Fprintf(&buf, "Email:            %s\n", doc.CustomerEmail)
	}
	fmt.Fprintf(&buf, "Phone:            %s\n", o.Phone)
	fmt.Fprintf(&buf, "Shipping Address: %s\n", o.ShippingAddress)
	fmt.Fprintf(&buf, "Status:           %s\n\n", o.Status)

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Product\tQuantity\tPrice\tSubtotal\t")
	for _, it := range o.Items {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", it.ProductName, it.Quantity, it.Price.StringFixed(2), it.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\tTotal:\t%s\t\n", o.TotalAmount.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return nil, fmt.Errorf("invoice: %w", err)
	}

	return &Rendered{
		ContentType: "text/plain; charset=utf-8",
		Filename:    fmt.Sprintf("invoice_%s.txt", o.ID),
		Body:        buf.Bytes(),
	}, nil
}

// HTTPRenderer posts the invoice data to a document rendering service and returns
// whatever it produces, usually a PDF.
type HTTPRenderer struct {
	baseURL    string
	storeName  string
	httpClient *http.Client
}

func NewHTTPRenderer(baseURL, storeName string) *HTTPRenderer {
	return &HTTPRenderer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		storeName: storeName,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type renderLine struct {
	Product  string `json:"product"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
	Subtotal string `json:"subtotal"`
}

type renderRequest struct {
	Store           string       `json:"store"`
	OrderID         string       `json:"order_id"`
	OrderDate       time.Time    `json:"order_date"`
	Customer        string       `json:"customer,omitempty"`
	Email           string       `json:"email,omitempty"`
	Phone           string       `json:"phone"`
	ShippingAddress string       `json:"shipping_address"`
	Status          string       `json:"status"`
	Lines           []renderLine `json:"lines"`
	Total           string       `json:"total"`
}

func (r *HTTPRenderer) Render(ctx context.Context, doc Document) (*Rendered, error) {
	o := doc.Order
	if o == nil {
		return nil, fmt.Errorf("invoice: nil order")
	}

	payload := renderRequest{
		Store:           r.storeName,
		OrderID:         o.ID.String(),
		OrderDate:       o.CreatedAt.UTC(),
		Customer:        doc.CustomerName,
		Email:           doc.CustomerEmail,
		Phone:           o.Phone,
		ShippingAddress: o.ShippingAddress,
		Status:          string(o.Status),
		Total:           o.TotalAmount.StringFixed(2),
	}
	for _, it := range o.Items {
		payload.Lines = append(payload.Lines, renderLine{
			Product:  it.ProductName,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
			Subtotal: it.Subtotal().StringFixed(2),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("invoice: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render/invoice", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invoice: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoice: renderer unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("invoice: renderer status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invoice: read body: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return &Rendered{
		ContentType: ct,
		Filename:    fmt.Sprintf("invoice_%s.pdf", o.ID),
		Body:        out,
	}, nil
}
