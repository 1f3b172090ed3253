package models

// Category is one of the four record classes fetched from the POS provider.
type Category string

const (
	CategorySales     Category = "sales"
	CategoryReturns   Category = "returns"
	CategoryInventory Category = "inventory"
	CategoryEmployees Category = "employees"
)

// CategoryOrder is the fixed processing order of an export cycle.
var CategoryOrder = []Category{CategorySales, CategoryReturns, CategoryInventory, CategoryEmployees}

// Section is the destination sheet name for a category.
type Section string

const (
	SectionSales     Section = "Продажи"
	SectionReturns   Section = "Возвраты"
	SectionInventory Section = "Остатки"
	SectionEmployees Section = "Сотрудники"
)

// SectionFor maps a category to its destination section.
func SectionFor(c Category) Section {
	switch c {
	case CategorySales:
		return SectionSales
	case CategoryReturns:
		return SectionReturns
	case CategoryInventory:
		return SectionInventory
	case CategoryEmployees:
		return SectionEmployees
	}
	return ""
}

// Row is one fixed-arity row tuple for a destination section.
type Row []interface{}

// SaleRecord is one sales line as returned by the provider.
type SaleRecord struct {
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	ReceiptNumber  string  `json:"receipt_number"`
	CashierName    string  `json:"cashier_name"`
	ProductName    string  `json:"product_name"`
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	DiscountAmount float64 `json:"discount_amount"`
	TotalAmount    float64 `json:"total_amount"`
	VATRate        string  `json:"vat_rate"`
	PaymentMethod  string  `json:"payment_method"`
}

// Row returns the sale in the column order of the sales section.
func (r SaleRecord) Row() Row {
	return Row{
		r.Date, r.Time, r.ReceiptNumber, r.CashierName, r.ProductName,
		r.Quantity, r.Price, r.DiscountAmount, r.TotalAmount, r.VATRate, r.PaymentMethod,
	}
}

// ReturnRecord is one return line as returned by the provider.
type ReturnRecord struct {
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
	CashierName string  `json:"cashier_name"`
}

func (r ReturnRecord) Row() Row {
	return Row{r.Date, r.Time, r.ProductName, r.Quantity, r.Amount, r.CashierName}
}

// InventoryRecord is one stock position.
type InventoryRecord struct {
	Name     string  `json:"name"`
	Article  string  `json:"article"`
	Quantity float64 `json:"quantity"`
}

func (r InventoryRecord) Row() Row {
	return Row{r.Name, r.Article, r.Quantity}
}

// EmployeeRecord is one employee performance line.
type EmployeeRecord struct {
	Name         string  `json:"name"`
	ID           string  `json:"id"`
	ChecksCount  int64   `json:"checks_count"`
	TotalAmount  float64 `json:"total_amount"`
	AverageCheck float64 `json:"average_check"`
}

func (r EmployeeRecord) Row() Row {
	return Row{r.Name, r.ID, r.ChecksCount, r.TotalAmount, r.AverageCheck}
}
