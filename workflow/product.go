package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"agrimarket/database"
	"agrimarket/utils"
)

// ProductTransitions is a complete graph; the owner or an admin may set any status.
var ProductTransitions = Table{
	database.ProductStatusAvailable: {database.ProductStatusSoldOut, database.ProductStatusSuspended},
	database.ProductStatusSoldOut:   {database.ProductStatusAvailable, database.ProductStatusSuspended},
	database.ProductStatusSuspended: {database.ProductStatusAvailable, database.ProductStatusSoldOut},
}

// OilTypes are the accepted oil_type values
var OilTypes = []string{database.OilTypeOlive, database.OilTypeArgan, database.OilTypeSunflower, database.OilTypeOther}

// ProductSpec is the variant-specific part of a product: SheepSpec or OilSpec.
type ProductSpec interface {
	Variant() string
	Validate() error
	applyTo(p *database.Product)
}

// SheepSpec requires a price and a weight
type SheepSpec struct {
	Price                 *decimal.Decimal
	Weight                *float64
	HasMedicalCertificate bool
	CertificatePath       string
}

func (SheepSpec) Variant() string { return database.ProductTypeSheep }

func (s SheepSpec) Validate() error {
	var missing []string
	if s.Price == nil {
		missing = append(missing, "price")
	}
	if s.Weight == nil {
		missing = append(missing, "weight")
	}
	if len(missing) > 0 {
		return utils.Validation("sheep products require: "+strings.Join(missing, ", "), missing...)
	}
	if !s.Price.IsPositive() {
		return utils.Validation("price must be greater than zero", "price")
	}
	if *s.Weight <= 0 {
		return utils.Validation("weight must be greater than zero", "weight")
	}
	return nil
}

func (s SheepSpec) applyTo(p *database.Product) {
	p.Type = database.ProductTypeSheep
	p.Price = decimal.NewNullDecimal(*s.Price)
	p.Weight = s.Weight
	p.HasMedicalCertificate = s.HasMedicalCertificate
	p.CertificatePath = s.CertificatePath
	p.OilType = ""
	p.Quantity = nil
}

// OilSpec requires an oil type and a quantity. A price is optional.
type OilSpec struct {
	OilType  string
	Quantity *float64
	Price    *decimal.Decimal
}

func (OilSpec) Variant() string { return database.ProductTypeOil }

func (o OilSpec) Validate() error {
	var missing []string
	if o.OilType == "" {
		missing = append(missing, "oil_type")
	}
	if o.Quantity == nil {
		missing = append(missing, "quantity")
	}
	if len(missing) > 0 {
		return utils.Validation("oil products require: "+strings.Join(missing, ", "), missing...)
	}
	if err := validateEnum("oil_type", o.OilType, OilTypes...); err != nil {
		return err
	}
	if *o.Quantity <= 0 {
		return utils.Validation("quantity must be greater than zero", "quantity")
	}
	if o.Price != nil && o.Price.IsNegative() {
		return utils.Validation("price cannot be negative", "price")
	}
	return nil
}

func (o OilSpec) applyTo(p *database.Product) {
	p.Type = database.ProductTypeOil
	p.OilType = o.OilType
	p.Quantity = o.Quantity
	if o.Price != nil {
		p.Price = decimal.NewNullDecimal(*o.Price)
	} else {
		p.Price = decimal.NullDecimal{}
	}
	p.Weight = nil
	p.HasMedicalCertificate = false
	p.CertificatePath = ""
}

// ProductInput carries the raw variant fields of a create or update request
type ProductInput struct {
	Type                  string
	Price                 *decimal.Decimal
	Weight                *float64
	HasMedicalCertificate bool
	CertificatePath       string
	OilType               string
	Quantity              *float64
}

// SpecFor picks the variant from in.Type
func SpecFor(in ProductInput) (ProductSpec, error) {
	switch in.Type {
	case database.ProductTypeSheep:
		return SheepSpec{Price: in.Price, Weight: in.Weight, HasMedicalCertificate: in.HasMedicalCertificate, CertificatePath: in.CertificatePath}, nil
	case database.ProductTypeOil:
		return OilSpec{OilType: in.OilType, Quantity: in.Quantity, Price: in.Price}, nil
	case "":
		return nil, utils.Validation("type is required", "type")
	default:
		return nil, utils.Validation("type must be one of: sheep, oil", "type")
	}
}

// InputOf returns the current variant fields of p, the base for partial updates
func InputOf(p *database.Product) ProductInput {
	in := ProductInput{
		Type:                  p.Type,
		Weight:                p.Weight,
		HasMedicalCertificate: p.HasMedicalCertificate,
		CertificatePath:       p.CertificatePath,
		OilType:               p.OilType,
		Quantity:              p.Quantity,
	}
	if p.Price.Valid {
		price := p.Price.Decimal
		in.Price = &price
	}
	return in
}

// ApplyProductSpec validates spec and writes its fields onto p, clearing the
// fields of the other variant.
func ApplyProductSpec(p *database.Product, spec ProductSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	spec.applyTo(p)
	return nil
}

// ApplyProductStatus sets a product status
func ApplyProductStatus(p *database.Product, next string, mode Mode) (Transition, error) {
	tr, err := Check(ProductTransitions, database.EntityProduct, p.Status, next, mode)
	if err != nil {
		return tr, err
	}
	p.Status = next
	return tr, nil
}
