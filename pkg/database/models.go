package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Document statuses. Orders move pending -> inProgress -> completed -> cancelled,
// invoices and returns move draft -> posted -> void.
const (
	StatusPending    = "pending"
	StatusInProgress = "inProgress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"

	StatusDraft  = "draft"
	StatusPosted = "posted"
	StatusVoid   = "void"
)

// Invoice kinds
const (
	InvoiceSales          = "sales"
	InvoicePurchase       = "purchase"
	InvoiceSalesReturn    = "sales_return"
	InvoicePurchaseReturn = "purchase_return"
)

// Inventory item kinds, used wherever a document line can point at more than
// one stock table.
const (
	ItemRawMaterial       = "raw_material"
	ItemPackagingMaterial = "packaging_material"
	ItemSemiFinished      = "semi_finished"
	ItemFinishedProduct   = "finished_product"
)

// Party kinds for ledger entries and balance updates
const (
	PartyCustomer = "customer"
	PartySupplier = "supplier"
)

// Base model for all entities
type BaseModel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate generates the UUID so inserts work the same on postgres and
// the sqlite test database.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	return nil
}

// CompanySettings is a single-row table holding the company profile and
// stock policy.
type CompanySettings struct {
	BaseModel
	Name               string          `gorm:"not null" json:"name"`
	Currency           string          `gorm:"default:'EGP'" json:"currency"`
	Address            string          `json:"address"`
	Phone              string          `json:"phone"`
	TaxNumber          string          `json:"tax_number"`
	DefaultTaxRate     decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"default_tax_rate"`
	AllowNegativeStock bool            `gorm:"default:false" json:"allow_negative_stock"`
}

// User represents a system user
type User struct {
	BaseModel
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"`
	Name         string `gorm:"not null" json:"name"`
	Role         string `gorm:"default:'staff'" json:"role"` // owner, manager, staff
	IsActive     bool   `gorm:"default:true" json:"is_active"`
}

// RawMaterial represents a purchased ingredient (oils, actives, fragrances)
type RawMaterial struct {
	BaseModel
	Code     string          `gorm:"uniqueIndex;not null" json:"code"`
	Name     string          `gorm:"not null" json:"name"`
	Unit     string          `gorm:"not null" json:"unit"` // kg, liter, g
	StockQty float64         `gorm:"default:0" json:"stock_qty"`
	UnitCost decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"unit_cost"`
	MinStock float64         `gorm:"default:0" json:"min_stock"`
	Supplier string          `json:"supplier"`
}

// PackagingMaterial represents jars, bottles, labels, boxes
type PackagingMaterial struct {
	BaseModel
	Code     string          `gorm:"uniqueIndex;not null" json:"code"`
	Name     string          `gorm:"not null" json:"name"`
	Unit     string          `gorm:"not null" json:"unit"` // pcs
	StockQty float64         `gorm:"default:0" json:"stock_qty"`
	UnitCost decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"unit_cost"`
	MinStock float64         `gorm:"default:0" json:"min_stock"`
	Supplier string          `json:"supplier"`
}

// SemiFinished is a bulk product produced from raw materials by recipe
// (creams, serums before filling).
type SemiFinished struct {
	BaseModel
	Code      string          `gorm:"uniqueIndex;not null" json:"code"`
	Name      string          `gorm:"not null" json:"name"`
	Unit      string          `gorm:"not null" json:"unit"` // kg, liter
	BatchSize float64         `gorm:"default:1" json:"batch_size"`
	StockQty  float64         `gorm:"default:0" json:"stock_qty"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"unit_cost"`
	Recipe    []RecipeItem    `gorm:"foreignKey:SemiFinishedID" json:"recipe,omitempty"`
}

// RecipeItem links a semi-finished product to one raw material with the
// quantity required per batch.
type RecipeItem struct {
	ID             uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	SemiFinishedID uuid.UUID   `gorm:"type:uuid;not null;index" json:"semi_finished_id"`
	RawMaterialID  uuid.UUID   `gorm:"type:uuid;not null" json:"raw_material_id"`
	RawMaterial    RawMaterial `gorm:"foreignKey:RawMaterialID" json:"raw_material"`
	Quantity       float64     `gorm:"not null" json:"quantity"` // per batch
}

func (r *RecipeItem) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// FinishedProduct is a sellable packaged unit: a semi-finished base filled
// into packaging components.
type FinishedProduct struct {
	BaseModel
	Code           string             `gorm:"uniqueIndex;not null" json:"code"`
	Name           string             `gorm:"not null" json:"name"`
	Barcode        string             `json:"barcode"`
	SemiFinishedID *uuid.UUID         `gorm:"type:uuid" json:"semi_finished_id"`
	SemiFinished   *SemiFinished      `gorm:"foreignKey:SemiFinishedID" json:"semi_finished,omitempty"`
	BaseQtyPerUnit float64            `gorm:"default:0" json:"base_qty_per_unit"` // semi-finished qty per unit
	StockQty       float64            `gorm:"default:0" json:"stock_qty"`
	UnitCost       decimal.Decimal    `gorm:"type:decimal(20,8);default:0" json:"unit_cost"`
	SalePrice      decimal.Decimal    `gorm:"type:decimal(20,8);default:0" json:"sale_price"`
	MinStock       float64            `gorm:"default:0" json:"min_stock"`
	IsActive       bool               `gorm:"default:true" json:"is_active"`
	Components     []PackageComponent `gorm:"foreignKey:FinishedProductID" json:"components,omitempty"`
}

// PackageComponent links a finished product to one packaging material with
// the quantity required per unit.
type PackageComponent struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	FinishedProductID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"finished_product_id"`
	PackagingMaterialID uuid.UUID         `gorm:"type:uuid;not null" json:"packaging_material_id"`
	PackagingMaterial   PackagingMaterial `gorm:"foreignKey:PackagingMaterialID" json:"packaging_material"`
	QtyPerUnit          float64           `gorm:"not null" json:"qty_per_unit"`
}

func (p *PackageComponent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductionOrder produces a semi-finished batch from raw materials
type ProductionOrder struct {
	BaseModel
	Code           string                `gorm:"uniqueIndex;not null" json:"code"`
	SemiFinishedID uuid.UUID             `gorm:"type:uuid;not null" json:"semi_finished_id"`
	SemiFinished   SemiFinished          `gorm:"foreignKey:SemiFinishedID" json:"semi_finished,omitempty"`
	Quantity       float64               `gorm:"not null" json:"quantity"` // output qty in semi-finished units
	Status         string                `gorm:"default:'pending'" json:"status"`
	Notes          string                `json:"notes"`
	TotalCost      decimal.Decimal       `gorm:"type:decimal(20,8);default:0" json:"total_cost"`
	CompletedAt    *time.Time            `json:"completed_at"`
	Items          []ProductionOrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// ProductionOrderItem is a raw material consumption line, snapshotted from
// the recipe at order creation.
type ProductionOrderItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	RawMaterialID uuid.UUID       `gorm:"type:uuid;not null" json:"raw_material_id"`
	RawMaterial   RawMaterial     `gorm:"foreignKey:RawMaterialID" json:"raw_material"`
	Quantity      float64         `gorm:"not null" json:"quantity"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"unit_cost"`
	Total         decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total"`
}

func (p *ProductionOrderItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PackagingOrder fills a semi-finished base into packaging to produce
// finished units.
type PackagingOrder struct {
	BaseModel
	Code              string               `gorm:"uniqueIndex;not null" json:"code"`
	FinishedProductID uuid.UUID            `gorm:"type:uuid;not null" json:"finished_product_id"`
	FinishedProduct   FinishedProduct      `gorm:"foreignKey:FinishedProductID" json:"finished_product,omitempty"`
	Quantity          float64              `gorm:"not null" json:"quantity"` // output units
	Status            string               `gorm:"default:'pending'" json:"status"`
	Notes             string               `json:"notes"`
	TotalCost         decimal.Decimal      `gorm:"type:decimal(20,8);default:0" json:"total_cost"`
	CompletedAt       *time.Time           `json:"completed_at"`
	Items             []PackagingOrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// PackagingOrderItem is a consumption line: the semi-finished base or one
// packaging material.
type PackagingOrderItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ComponentType string          `gorm:"not null" json:"component_type"` // semi_finished, packaging_material
	ComponentID   uuid.UUID       `gorm:"type:uuid;not null" json:"component_id"`
	Quantity      float64         `gorm:"not null" json:"quantity"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"unit_cost"`
	Total         decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total"`
}

func (p *PackagingOrderItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Customer represents a buyer. Balance is the signed amount the customer
// owes the company.
type Customer struct {
	BaseModel
	Name    string          `gorm:"not null" json:"name"`
	Phone   string          `json:"phone"`
	Email   string          `json:"email"`
	Address string          `json:"address"`
	Balance decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"balance"`
}

// Supplier represents a vendor. Balance is the signed amount the company
// owes the supplier.
type Supplier struct {
	BaseModel
	Name    string          `gorm:"not null" json:"name"`
	Phone   string          `json:"phone"`
	Email   string          `json:"email"`
	Address string          `json:"address"`
	Balance decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"balance"`
}

// Treasury is a cash or bank account
type Treasury struct {
	BaseModel
	Name     string          `gorm:"not null" json:"name"`
	Kind     string          `gorm:"default:'cash'" json:"kind"` // cash, bank
	Currency string          `gorm:"default:'EGP'" json:"currency"`
	Balance  decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"balance"`
	IsActive bool            `gorm:"default:true" json:"is_active"`
}

// Invoice covers sales, purchases and both return types; Kind selects the
// stock and balance direction. Sales documents reference a customer,
// purchase documents a supplier.
type Invoice struct {
	BaseModel
	Kind       string          `gorm:"not null;index" json:"kind"`
	Number     string          `gorm:"uniqueIndex;not null" json:"number"`
	Date       time.Time       `json:"date"`
	CustomerID *uuid.UUID      `gorm:"type:uuid" json:"customer_id"`
	Customer   *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	SupplierID *uuid.UUID      `gorm:"type:uuid" json:"supplier_id"`
	Supplier   *Supplier       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	Status     string          `gorm:"default:'draft'" json:"status"`
	Items      []InvoiceItem   `gorm:"foreignKey:InvoiceID" json:"items"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"subtotal"`
	Discount   decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"discount"`
	Tax        decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"tax"`
	Shipping   decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"shipping"`
	Total      decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"paid_amount"`
	TreasuryID *uuid.UUID      `gorm:"type:uuid" json:"treasury_id"`
	Treasury   *Treasury       `gorm:"foreignKey:TreasuryID" json:"treasury,omitempty"`
	Notes      string          `json:"notes"`
	PostedAt   *time.Time      `json:"posted_at"`
	VoidedAt   *time.Time      `json:"voided_at"`
}

// InvoiceItem is one document line. Sales lines reference finished products,
// purchase lines reference raw or packaging materials.
type InvoiceItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	ItemType  string          `gorm:"not null" json:"item_type"`
	ItemID    uuid.UUID       `gorm:"type:uuid;not null" json:"item_id"`
	Name      string          `json:"name"` // snapshot for statements and printing
	Quantity  float64         `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"unit_price"`
	Total     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total"`
}

func (i *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InvoicePayment records money received or paid against a posted invoice
type InvoicePayment struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	TreasuryID uuid.UUID       `gorm:"type:uuid;not null" json:"treasury_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (p *InvoicePayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// LedgerEntry is an append-only debit/credit record tied to a party or
// treasury and the document that produced it. Posted entries are never
// deleted; voiding writes negating entries and marks the originals reversed.
type LedgerEntry struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	EntryDate    time.Time       `json:"entry_date"`
	PartyType    string          `gorm:"index" json:"party_type"` // customer, supplier, empty for treasury-only entries
	PartyID      *uuid.UUID      `gorm:"type:uuid;index" json:"party_id"`
	TreasuryID   *uuid.UUID      `gorm:"type:uuid;index" json:"treasury_id"`
	Debit        decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"debit"`
	Credit       decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"credit"`
	SourceType   string          `gorm:"not null;index:idx_ledger_source" json:"source_type"`
	SourceID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_source" json:"source_id"`
	Description  string          `json:"description"`
	Reversed     bool            `gorm:"default:false" json:"reversed"`
	ReversalOfID *uuid.UUID      `gorm:"type:uuid" json:"reversal_of_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ActivityRecord tracks user actions for the audit trail
type ActivityRecord struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string     `gorm:"not null" json:"action"` // post, void, complete, cancel, stock_adjust, ...
	EntityType string     `json:"entity_type"`
	EntityID   *uuid.UUID `gorm:"type:uuid" json:"entity_id"`
	Details    string     `gorm:"type:text" json:"details"`
	IPAddress  string     `json:"ip_address"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (a *ActivityRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&CompanySettings{},
		&User{},
		&RawMaterial{},
		&PackagingMaterial{},
		&SemiFinished{},
		&RecipeItem{},
		&FinishedProduct{},
		&PackageComponent{},
		&ProductionOrder{},
		&ProductionOrderItem{},
		&PackagingOrder{},
		&PackagingOrderItem{},
		&Customer{},
		&Supplier{},
		&Treasury{},
		&Invoice{},
		&InvoiceItem{},
		&InvoicePayment{},
		&LedgerEntry{},
		&ActivityRecord{},
	)
}

// GetSettings returns the company settings row, creating a default one on
// first call.
func GetSettings(db *gorm.DB) (*CompanySettings, error) {
	var settings CompanySettings
	err := db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = CompanySettings{Name: "My Company"}
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
