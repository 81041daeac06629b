package importer

import (
	"context"
	"strings"
	"testing"

	"cart-engine/internal/domain"
	cartsvc "cart-engine/internal/service/cart"
	"cart-engine/internal/session"
	"cart-engine/internal/store"
)

type addedLine struct {
	owner    domain.Owner
	instance string
	line     Line
}

type stubAdder struct {
	items []addedLine
}

func (s *stubAdder) AddLine(_ context.Context, owner domain.Owner, instance string, line Line) error {
	s.items = append(s.items, addedLine{owner: owner, instance: instance, line: line})
	return nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `session_key,user_id,instance,product_id,attributes,quantity,unit_price
sess-1,,,p1,size=M;colour=red,2,4.50
,,,p2,,,
,user-1,wishlist,p3,,1,10
,,,,,,
,,,p1,size=L,3,4.50`

	adder := &stubAdder{}
	imp := NewCSVImporter(strings.NewReader(csvData), adder, "default")

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 lines imported, got %d", count)
	}

	first := adder.items[0]
	if first.owner != domain.SessionOwner("sess-1") || first.instance != "default" {
		t.Fatalf("unexpected owner for first line: %+v", first)
	}
	if first.line.Quantity != 2 || first.line.UnitPrice.String() != "4.5" || first.line.Attributes["colour"] != "red" {
		t.Fatalf("unexpected first line: %+v", first.line)
	}
	if second := adder.items[1]; second.owner != first.owner || second.line.Quantity != 1 || !second.line.UnitPrice.IsZero() {
		t.Fatalf("expected continuation row with defaults, got %+v", second)
	}
	if third := adder.items[2]; third.owner != domain.UserOwner("user-1") || third.instance != "wishlist" {
		t.Fatalf("unexpected third line: %+v", third)
	}
	if last := adder.items[3]; last.owner != domain.UserOwner("user-1") || last.instance != "wishlist" || last.line.Attributes["size"] != "L" {
		t.Fatalf("expected last row to continue user cart, got %+v", last)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{name: "no product column", csv: "session_key,quantity\nsess-1,1"},
		{name: "both owners", csv: "session_key,user_id,product_id\nsess-1,user-1,p1"},
		{name: "bad quantity", csv: "session_key,product_id,quantity\nsess-1,p1,two"},
		{name: "bad price", csv: "session_key,product_id,unit_price\nsess-1,p1,abc"},
		{name: "bad attribute", csv: "session_key,product_id,attributes\nsess-1,p1,size"},
		{name: "continuation first", csv: "session_key,product_id\n,p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := NewCSVImporter(strings.NewReader(tt.csv), &stubAdder{}, "default")
			if _, err := imp.Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestServiceAdder_MergesEqualLines(t *testing.T) {
	svc := cartsvc.New(store.NewMemory())
	csvData := `session_key,product_id,attributes,quantity,unit_price
sess-1,p1,size=M,2,4.50
,p1,size=M,1,9.99
,p2,,1,1`

	imp := NewCSVImporter(strings.NewReader(csvData), ServiceAdder{Carts: svc}, "default")
	if _, err := imp.Run(context.Background()); err != nil {
		t.Fatalf("import run: %v", err)
	}

	scope := cartsvc.NewScope(session.NewVisitor(nil, "", "sess-1", ""))
	cart, err := svc.Current(context.Background(), scope, "default")
	if err != nil {
		t.Fatalf("current cart: %v", err)
	}
	items, err := cart.Items(context.Background())
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 || items[0].Quantity != 3 {
		t.Fatalf("expected merged p1 line, got %+v", items)
	}
	snap := cart.Snapshot()
	// p1 keeps its first unit price.
	if snap.ItemCount != 4 || snap.TotalPrice.String() != "14.5" {
		t.Fatalf("unexpected aggregates count=%d total=%s", snap.ItemCount, snap.TotalPrice)
	}
}

func TestServiceAdder_RejectsInvalidLine(t *testing.T) {
	svc := cartsvc.New(store.NewMemory())
	imp := NewCSVImporter(strings.NewReader("user_id,product_id,quantity\nuser-1,p1,0"), ServiceAdder{Carts: svc}, "default")

	count, err := imp.Run(context.Background())
	if err == nil {
		t.Fatalf("expected invalid quantity error")
	}
	if count != 0 {
		t.Fatalf("expected nothing imported, got %d", count)
	}
}
