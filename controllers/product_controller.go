package controllers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agrimarket/database"
	"agrimarket/events"
	"agrimarket/policy"
	"agrimarket/utils"
	"agrimarket/workflow"
)

// GetProducts lists the listings visible to the caller, newest first, with
// their farmer. Filters: type, status, farmer_id.
func GetProducts(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	query := db.Model(&database.Product{}).Scopes(policy.VisibleProducts(s))

	if t := c.Query("type"); t != "" {
		if t != database.ProductTypeSheep && t != database.ProductTypeOil {
			respondError(c, utils.Validation("type must be one of: sheep, oil", "type"))
			return
		}
		query = query.Where("products.type = ?", t)
	}
	if status := c.Query("status"); status != "" {
		if !workflow.ProductTransitions.Has(status) {
			respondError(c, utils.Validation("status must be one of: "+strings.Join(workflow.ProductTransitions.Statuses(), ", "), "status"))
			return
		}
		query = query.Where("products.status = ?", status)
	}
	farmerID, err := parseOptionalID(firstQuery(c, "farmer_id", "farmerId"), "farmer_id")
	if err != nil {
		respondError(c, err)
		return
	}
	if farmerID != 0 {
		query = query.Where("products.farmer_id = ?", farmerID)
	}

	var products []database.Product
	if err := query.Preload("Farmer").Scopes(paginate(c)).Order("products.created_at DESC").Find(&products).Error; err != nil {
		respondError(c, utils.FromDB(err, "Product"))
		return
	}
	c.JSON(http.StatusOK, products)
}

// GetProductByID returns a single visible listing
func GetProductByID(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	var product database.Product
	if err := db.Scopes(policy.VisibleProducts(session(c))).Preload("Farmer").First(&product, id).Error; err != nil {
		respondError(c, utils.FromDB(err, "Product"))
		return
	}
	c.JSON(http.StatusOK, product)
}

// readProductForm overlays the variant fields present in the form on base
func readProductForm(c *gin.Context, base workflow.ProductInput) (workflow.ProductInput, error) {
	in := base
	if t, ok := c.GetPostForm("type"); ok {
		in.Type = strings.ToLower(strings.TrimSpace(t))
	}
	price, ok, err := formDecimal(c, "price")
	if err != nil {
		return in, err
	}
	if ok {
		in.Price = price
	}
	weight, ok, err := formFloat(c, "weight")
	if err != nil {
		return in, err
	}
	if ok {
		in.Weight = weight
	}
	if b, ok := formBool(c, "has_medical_certificate"); ok {
		in.HasMedicalCertificate = b
	}
	if o, ok := c.GetPostForm("oil_type"); ok {
		in.OilType = strings.ToLower(strings.TrimSpace(o))
	}
	quantity, ok, err := formFloat(c, "quantity")
	if err != nil {
		return in, err
	}
	if ok {
		in.Quantity = quantity
	}
	return in, nil
}

// saveProductFiles stores the optional image and certificate uploads
func saveProductFiles(c *gin.Context) (image, certificate string, err error) {
	if fh, ferr := c.FormFile("image"); ferr == nil {
		if image, err = utils.SaveUpload(fh, utils.KindImage); err != nil {
			return "", "", err
		}
	}
	if fh, ferr := c.FormFile("certificate"); ferr == nil {
		if certificate, err = utils.SaveUpload(fh, utils.KindImage, utils.KindDocument); err != nil {
			utils.RemoveUpload(image)
			return "", "", err
		}
	}
	return image, certificate, nil
}

// CreateProduct creates a sheep or oil listing for the authenticated farmer
func CreateProduct(c *gin.Context) {
	s := session(c)

	in, err := readProductForm(c, workflow.ProductInput{})
	if err != nil {
		respondError(c, err)
		return
	}
	spec, err := workflow.SpecFor(in)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := spec.Validate(); err != nil {
		respondError(c, err)
		return
	}

	image, certificate, err := saveProductFiles(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if certificate != "" && spec.Variant() == database.ProductTypeSheep {
		in.CertificatePath = certificate
		in.HasMedicalCertificate = true
		spec, _ = workflow.SpecFor(in)
	}

	product := database.Product{
		FarmerID:    s.UserID,
		Description: strings.TrimSpace(c.PostForm("description")),
		ImagePath:   image,
		Status:      database.ProductStatusAvailable,
	}
	if err := workflow.ApplyProductSpec(&product, spec); err != nil {
		utils.RemoveUpload(image)
		utils.RemoveUpload(certificate)
		respondError(c, err)
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	if err := db.Create(&product).Error; err != nil {
		utils.RemoveUpload(image)
		utils.RemoveUpload(certificate)
		respondError(c, utils.FromDB(err, "Product"))
		return
	}

	db.Preload("Farmer").First(&product, product.ID)
	log.Printf("🐑 Farmer %d listed %s product %d", s.UserID, product.Type, product.ID)
	c.JSON(http.StatusCreated, product)
}

// loadEditableProduct fetches a product and checks the caller may change it.
// Products the caller cannot see are reported as not found.
func loadEditableProduct(c *gin.Context, db *gorm.DB) (*database.Product, error) {
	s := session(c)
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	var product database.Product
	if err := db.Scopes(policy.VisibleProducts(s)).First(&product, id).Error; err != nil {
		return nil, utils.FromDB(err, "Product")
	}
	if !policy.CanEditProduct(s, &product) {
		return nil, utils.Forbidden("You can only modify your own products")
	}
	return &product, nil
}

// UpdateProduct applies a partial update; absent fields keep their values
func UpdateProduct(c *gin.Context) {
	db, cancel := dbFor(c)
	defer cancel()

	product, err := loadEditableProduct(c, db)
	if err != nil {
		respondError(c, err)
		return
	}

	in, err := readProductForm(c, workflow.InputOf(product))
	if err != nil {
		respondError(c, err)
		return
	}
	spec, err := workflow.SpecFor(in)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := spec.Validate(); err != nil {
		respondError(c, err)
		return
	}

	var tr workflow.Transition
	status, statusTouched := c.GetPostForm("status")
	if statusTouched {
		if tr, err = workflow.ApplyProductStatus(product, strings.TrimSpace(status), workflowMode()); err != nil {
			respondError(c, err)
			return
		}
	}

	image, certificate, err := saveProductFiles(c)
	if err != nil {
		respondError(c, err)
		return
	}
	oldImage, oldCertificate := product.ImagePath, product.CertificatePath
	if certificate != "" && spec.Variant() == database.ProductTypeSheep {
		in.CertificatePath = certificate
		in.HasMedicalCertificate = true
		spec, _ = workflow.SpecFor(in)
	}
	if image != "" {
		product.ImagePath = image
	}
	if d, ok := c.GetPostForm("description"); ok {
		product.Description = strings.TrimSpace(d)
	}
	if err := workflow.ApplyProductSpec(product, spec); err != nil {
		utils.RemoveUpload(image)
		utils.RemoveUpload(certificate)
		respondError(c, err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(product).
			Select("type", "price", "weight", "has_medical_certificate", "certificate_path", "oil_type", "quantity", "description", "image_path", "status").
			Updates(product).Error; err != nil {
			return err
		}
		if statusTouched {
			if err := auditTransition(c, tx, product.ID, tr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.RemoveUpload(image)
		utils.RemoveUpload(certificate)
		respondError(c, utils.FromDB(err, "Product"))
		return
	}
	if image != "" && oldImage != "" {
		utils.RemoveUpload(oldImage)
	}
	if oldCertificate != "" && oldCertificate != product.CertificatePath {
		utils.RemoveUpload(oldCertificate)
	}
	if statusTouched && tr.Changed() {
		emitTransition(c, events.ProductStatusChanged, product.ID, tr, product.FarmerID)
	}

	db.Preload("Farmer").First(product, product.ID)
	c.JSON(http.StatusOK, product)
}

// UpdateProductStatusRequest contains the new listing status
type UpdateProductStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateProductStatus moves a listing between available, sold-out and suspended
func UpdateProductStatus(c *gin.Context) {
	s := session(c)

	var req UpdateProductStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.Validation("status is required", "status"))
		return
	}

	db, cancel := dbFor(c)
	defer cancel()

	product, err := loadEditableProduct(c, db)
	if err != nil {
		respondError(c, err)
		return
	}
	tr, err := workflow.ApplyProductStatus(product, strings.TrimSpace(req.Status), workflowMode())
	if err != nil {
		respondError(c, err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(product).Update("status", product.Status).Error; err != nil {
			return err
		}
		if err := auditTransition(c, tx, product.ID, tr); err != nil {
			return err
		}
		return touchAdmin(tx, s)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "Product"))
		return
	}
	if tr.Changed() {
		if tr.Flagged {
			log.Printf("⚠️ Product %d moved %s -> %s outside the workflow by user %d", product.ID, tr.From, tr.To, s.UserID)
		}
		emitTransition(c, events.ProductStatusChanged, product.ID, tr, product.FarmerID)
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct permanently removes a listing. Messages that referenced it
// keep existing without the product link.
func DeleteProduct(c *gin.Context) {
	s := session(c)

	db, cancel := dbFor(c)
	defer cancel()

	product, err := loadEditableProduct(c, db)
	if err != nil {
		respondError(c, err)
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Message{}).Where("product_id = ?", product.ID).Update("product_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(product).Error; err != nil {
			return err
		}
		if err := audit(c, tx, database.EntityProduct, product.ID, "delete", product.Status, ""); err != nil {
			return err
		}
		return touchAdmin(tx, s)
	})
	if err != nil {
		respondError(c, utils.FromDB(err, "Product"))
		return
	}

	utils.RemoveUpload(product.ImagePath)
	utils.RemoveUpload(product.CertificatePath)
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
