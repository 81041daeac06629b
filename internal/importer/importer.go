package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cart-engine/internal/domain"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/session"
	"github.com/shopspring/decimal"
)

// LineAdder adds a line to the active cart of owner in instance.
type LineAdder interface {
	AddLine(ctx context.Context, owner domain.Owner, instance string, line Line) error
}

// Line is one imported cart line.
type Line struct {
	ProductID  string
	Attributes domain.Attributes
	Quantity   int
	UnitPrice  decimal.Decimal
}

// CSVImporter reads cart exports and adds their lines to active carts. A row
// without owner columns continues the cart of the previous row.
type CSVImporter struct {
	reader          *csv.Reader
	carts           LineAdder
	defaultInstance string
}

func NewCSVImporter(r io.Reader, carts LineAdder, defaultInstance string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:          csvr,
		carts:           carts,
		defaultInstance: defaultInstance,
	}
}

type csvRow struct {
	line   int
	owner  domain.Owner
	inst   string
	item   Line
	hasKey bool
}

// Run parses CSV rows and adds each line to its owner's cart. It returns the
// number of lines imported.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["product_id"]; !ok {
		return 0, errors.New("missing product_id column")
	}

	var (
		current  *csvRow
		imported int
	)

	for lineNo := 2; ; lineNo++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		row, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", lineNo, err)
		}
		if row == nil {
			continue
		}
		row.line = lineNo

		if row.hasKey {
			current = row
		} else {
			// Continuation rows belong to the previous owner.
			if current == nil {
				return imported, fmt.Errorf("row %d: no owner for continuation row", lineNo)
			}
			row.owner, row.inst = current.owner, current.inst
		}
		if row.inst == "" {
			row.inst = i.defaultInstance
		}

		if err := i.carts.AddLine(ctx, row.owner, row.inst, row.item); err != nil {
			return imported, fmt.Errorf("row %d: add %s to %s: %w", row.line, row.item.ProductID, row.owner, err)
		}
		imported++
	}

	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*csvRow, error) {
	userID := pick(record, index, "user_id")
	sessionKey := pick(record, index, "session_key")
	productID := pick(record, index, "product_id")

	if productID == "" {
		return nil, nil
	}
	if userID != "" && sessionKey != "" {
		return nil, errors.New("user_id and session_key are mutually exclusive")
	}

	quantity := 1
	if v := pick(record, index, "quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q", v)
		}
		quantity = n
	}

	unitPrice := decimal.Zero
	if v := pick(record, index, "unit_price"); v != "" {
		p, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid unit_price %q", v)
		}
		unitPrice = p
	}

	attrs, err := parseAttributes(pick(record, index, "attributes"))
	if err != nil {
		return nil, err
	}

	row := &csvRow{
		inst: pick(record, index, "instance"),
		item: Line{
			ProductID:  productID,
			Attributes: attrs,
			Quantity:   quantity,
			UnitPrice:  unitPrice,
		},
	}
	switch {
	case userID != "":
		row.owner, row.hasKey = domain.UserOwner(userID), true
	case sessionKey != "":
		row.owner, row.hasKey = domain.SessionOwner(sessionKey), true
	}
	return row, nil
}

// parseAttributes reads "size=M;colour=red".
func parseAttributes(v string) (domain.Attributes, error) {
	if v == "" {
		return nil, nil
	}
	attrs := domain.Attributes{}
	for _, pair := range strings.Split(v, ";") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		k, val, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid attribute %q", pair)
		}
		attrs[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return attrs, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

// ServiceAdder adds imported lines through the cart service, so merging of
// equal lines and aggregate upkeep follow the regular write path.
type ServiceAdder struct {
	Carts *cartsvc.Service
}

func (a ServiceAdder) AddLine(ctx context.Context, owner domain.Owner, instance string, line Line) error {
	var userID string
	if owner.IsUser() {
		userID = owner.UserID
	}
	scope := cartsvc.NewScope(session.NewVisitor(nil, "", owner.SessionKey, userID))
	cart, err := a.Carts.Current(ctx, scope, instance)
	if err != nil {
		return err
	}
	_, err = cart.AddItem(ctx, line.ProductID, line.Attributes, line.Quantity, line.UnitPrice)
	return err
}
