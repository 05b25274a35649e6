package policy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"agrimarket/config"
	"agrimarket/database"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	config.AppConfig = config.Defaults()
	config.AppConfig.Environment = "test"
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		_ = database.CloseDB()
		database.DB = prev
	})
	require.NoError(t, database.RunMigrations())
	return db
}

func mkUser(t *testing.T, db *gorm.DB, name, role, status string) database.User {
	t.Helper()
	u := database.User{Username: name, Email: name + "@x.test", PasswordHash: "h", Role: role, Status: status}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func mkProduct(t *testing.T, db *gorm.DB, farmer database.User) database.Product {
	t.Helper()
	q := 1.0
	p := database.Product{FarmerID: farmer.ID, Type: database.ProductTypeOil, OilType: database.OilTypeOlive, Quantity: &q, Status: database.ProductStatusAvailable}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func ids[T any](items []T, id func(T) uint) []uint {
	out := make([]uint, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func productIDs(t *testing.T, db *gorm.DB, s Session) []uint {
	t.Helper()
	var got []database.Product
	require.NoError(t, db.Scopes(VisibleProducts(s)).Order("id").Find(&got).Error)
	return ids(got, func(p database.Product) uint { return p.ID })
}

func TestVisibleProducts(t *testing.T) {
	db := openDB(t)
	accepted := mkUser(t, db, "acc", database.RoleFarmer, database.UserStatusAccepted)
	pending := mkUser(t, db, "pen", database.RoleFarmer, database.UserStatusPending)
	consumer := mkUser(t, db, "con", database.RoleConsumer, database.UserStatusAccepted)

	pa := mkProduct(t, db, accepted)
	pp := mkProduct(t, db, pending)

	assert.Equal(t, []uint{pa.ID}, productIDs(t, db, Session{}))
	assert.Equal(t, []uint{pa.ID}, productIDs(t, db, Session{UserID: consumer.ID, Role: database.RoleConsumer}))
	assert.Equal(t, []uint{pa.ID, pp.ID}, productIDs(t, db, Session{UserID: pending.ID, Role: database.RoleFarmer}), "a farmer sees their own listings")
	assert.Equal(t, []uint{pa.ID, pp.ID}, productIDs(t, db, Session{UserID: 99, Role: database.RoleAdmin}))

	// visibility follows the farmer's current status
	require.NoError(t, db.Model(&accepted).Update("status", database.UserStatusSuspended).Error)
	assert.Empty(t, productIDs(t, db, Session{UserID: consumer.ID, Role: database.RoleConsumer}))
}

func TestVisibleProductsCombinesWithFilters(t *testing.T) {
	db := openDB(t)
	a := mkUser(t, db, "a", database.RoleFarmer, database.UserStatusAccepted)
	b := mkUser(t, db, "b", database.RoleFarmer, database.UserStatusPending)
	mkProduct(t, db, a)
	pb := mkProduct(t, db, b)

	var got []database.Product
	err := db.Scopes(VisibleProducts(Session{UserID: b.ID, Role: database.RoleFarmer})).
		Where("products.farmer_id = ?", b.ID).Find(&got).Error
	require.NoError(t, err)
	assert.Equal(t, []uint{pb.ID}, ids(got, func(p database.Product) uint { return p.ID }))
}

func TestVisibleUsers(t *testing.T) {
	db := openDB(t)
	a := mkUser(t, db, "a", database.RoleConsumer, database.UserStatusAccepted)
	mkUser(t, db, "b", database.RoleVet, database.UserStatusAccepted)

	var got []database.User
	require.NoError(t, db.Scopes(VisibleUsers(Session{UserID: a.ID, Role: database.RoleConsumer})).Find(&got).Error)
	assert.Equal(t, []uint{a.ID}, ids(got, func(u database.User) uint { return u.ID }))

	require.NoError(t, db.Scopes(VisibleUsers(Session{UserID: 50, Role: database.RoleAdmin})).Find(&got).Error)
	assert.Len(t, got, 2)

	require.NoError(t, db.Scopes(VisibleUsers(Session{})).Find(&got).Error)
	assert.Empty(t, got)
}

func TestVisibleMessages(t *testing.T) {
	db := openDB(t)
	x := mkUser(t, db, "x", database.RoleConsumer, database.UserStatusAccepted)
	y := mkUser(t, db, "y", database.RoleFarmer, database.UserStatusAccepted)
	z := mkUser(t, db, "z", database.RoleFarmer, database.UserStatusAccepted)

	xy := database.Message{SenderID: x.ID, ReceiverID: y.ID, Subject: "s", Content: "c"}
	yx := database.Message{SenderID: y.ID, ReceiverID: x.ID, Subject: "s", Content: "c"}
	zy := database.Message{SenderID: z.ID, ReceiverID: y.ID, Subject: "s", Content: "c"}
	require.NoError(t, db.Create(&[]*database.Message{&xy, &yx, &zy}).Error)

	find := func(s Session, box string) []uint {
		var got []database.Message
		require.NoError(t, db.Scopes(VisibleMessages(s, box)).Order("id").Find(&got).Error)
		return ids(got, func(m database.Message) uint { return m.ID })
	}
	sx := Session{UserID: x.ID, Role: database.RoleConsumer}

	assert.Equal(t, []uint{xy.ID, yx.ID}, find(sx, BoxAll))
	assert.Equal(t, []uint{yx.ID}, find(sx, BoxReceived))
	assert.Equal(t, []uint{xy.ID}, find(sx, BoxSent))
	assert.Empty(t, find(Session{}, BoxAll))
	assert.True(t, ValidBox("sent"))
	assert.False(t, ValidBox("trash"))
}

func TestVisibleConsultations(t *testing.T) {
	db := openDB(t)
	f := mkUser(t, db, "f", database.RoleFarmer, database.UserStatusAccepted)
	v := mkUser(t, db, "v", database.RoleVet, database.UserStatusAccepted)
	v2 := mkUser(t, db, "v2", database.RoleVet, database.UserStatusAccepted)

	c1 := database.Consultation{FarmerID: f.ID, VetID: v.ID, SheepIDs: []uint{1}, Description: "d"}
	c2 := database.Consultation{FarmerID: f.ID, VetID: v2.ID, SheepIDs: []uint{1}, Description: "d"}
	require.NoError(t, db.Create(&c1).Error)
	require.NoError(t, db.Create(&c2).Error)

	count := func(s Session) int64 {
		var n int64
		require.NoError(t, db.Model(&database.Consultation{}).Scopes(VisibleConsultations(s)).Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(2), count(Session{UserID: f.ID, Role: database.RoleFarmer}))
	assert.Equal(t, int64(1), count(Session{UserID: v.ID, Role: database.RoleVet}))
	assert.Equal(t, int64(2), count(Session{UserID: 77, Role: database.RoleAdmin}))
	assert.Equal(t, int64(0), count(Session{UserID: 5, Role: database.RoleConsumer}))
}

func TestVisibleReclamations(t *testing.T) {
	db := openDB(t)
	r1 := database.Reclamation{Reference: "REC-20240101-1000", Subject: "s", Description: "d", CreatorID: 1}
	r2 := database.Reclamation{Reference: "REC-20240101-1001", Subject: "s", Description: "d", CreatorID: 2}
	require.NoError(t, db.Create(&r1).Error)
	require.NoError(t, db.Create(&r2).Error)

	var got []database.Reclamation
	require.NoError(t, db.Scopes(VisibleReclamations(Session{UserID: 1, Role: database.RoleFarmer})).Find(&got).Error)
	assert.Equal(t, []uint{r1.ID}, ids(got, func(r database.Reclamation) uint { return r.ID }))

	require.NoError(t, db.Scopes(VisibleReclamations(Session{UserID: 9, Role: database.RoleAdmin})).Find(&got).Error)
	assert.Len(t, got, 2)
}

func TestMutationChecks(t *testing.T) {
	p := &database.Product{FarmerID: 3}
	assert.True(t, CanEditProduct(Session{UserID: 3, Role: database.RoleFarmer}, p))
	assert.False(t, CanEditProduct(Session{UserID: 4, Role: database.RoleFarmer}, p))
	assert.True(t, CanEditProduct(Session{UserID: 1, Role: database.RoleAdmin}, p))

	assert.False(t, CanDeleteConsultation(Session{UserID: 3, Role: database.RoleFarmer}, &database.Consultation{FarmerID: 3}))
	assert.True(t, CanDeleteConsultation(Session{UserID: 1, Role: database.RoleAdmin}, &database.Consultation{}))

	m := &database.Message{SenderID: 1, ReceiverID: 2}
	assert.True(t, CanDeleteMessage(Session{UserID: 2}, m))
	assert.False(t, CanDeleteMessage(Session{UserID: 3}, m))
}
