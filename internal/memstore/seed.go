package memstore

import (
	"sync/atomic"

	"fulfillment-service/internal/models"

	"github.com/shopspring/decimal"
)

// SeedDemo loads the same demo catalog the seed migration inserts
func SeedDemo(s *Store) {
	acme := s.AddSupplier(models.Supplier{ID: 1, Name: "Acme Components", Email: "orders@acme.example"})
	globex := s.AddSupplier(models.Supplier{ID: 2, Name: "Globex Supplies", Email: "purchasing@globex.example"})

	s.AddCustomer(models.Customer{ID: 1, Name: "Demo Customer", Email: "demo@example.com", Address: "1 Main Street"})

	s.AddArticle(models.Article{ID: 1, SupplierID: acme.ID, Name: "Widget", Price: decimal.RequireFromString("5.00"), Stock: 100})
	s.AddArticle(models.Article{ID: 2, SupplierID: acme.ID, Name: "Sprocket", Price: decimal.RequireFromString("12.50"), Stock: 50})
	s.AddArticle(models.Article{ID: 3, SupplierID: globex.ID, Name: "Gadget", Price: decimal.RequireFromString("30.00"), Stock: 20})
	s.AddArticle(models.Article{ID: 4, SupplierID: globex.ID, Name: "Gizmo", Price: decimal.RequireFromString("2.75"), Stock: 200})

	if atomic.LoadInt64(&s.seq) < 100 {
		atomic.StoreInt64(&s.seq, 100)
	}
}
