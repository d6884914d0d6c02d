package services

import (
	"context"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/igapp/aurora/internal/api"
	"github.com/igapp/aurora/internal/database"
	"github.com/igapp/aurora/internal/metrics"
)

// Mapper is the entity specific part of a CRUD service.
// ToEntity and ApplyUpdate run inside the write transaction and resolve
// foreign keys through tx. ToResponse must be pure.
type Mapper[E any, Req any, Resp any] interface {
	ToEntity(tx *gorm.DB, req *Req) (*E, error)
	ToResponse(e *E) Resp
	ApplyUpdate(tx *gorm.DB, e *E, req *Req) error
}

// Preloader names the associations ToResponse needs
type Preloader interface {
	Preload(db *gorm.DB) *gorm.DB
}

// Deleter replaces the default delete. Deleting an absent row must be a no-op.
type Deleter interface {
	Delete(tx *gorm.DB, id uint) error
}

// Orderer sets the default list order, e.g. "created_at DESC"
type Orderer interface {
	DefaultOrder() string
}

// UniqueChecker rejects an entity that would collide with a live row.
// On update the entity carries its own id and must not collide with itself.
type UniqueChecker[E any] interface {
	CheckUnique(tx *gorm.DB, e *E) error
}

// Decorator completes mapped responses with data stored outside the entity row
type Decorator[Resp any] interface {
	Decorate(db *gorm.DB, resps []Resp) error
}

// Scope narrows a query
type Scope = func(*gorm.DB) *gorm.DB

// CRUD executes create, read, update and delete for one entity type.
// Entities embedding database.SoftDelete are soft-deleted and hidden from
// listings, but stay readable by id.
type CRUD[E any, Req any, Resp any] struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	entity string
	mapper Mapper[E, Req, Resp]
	schema *schema.Schema
}

// NewCRUD creates the executor for one entity type
func NewCRUD[E any, Req any, Resp any](db *gorm.DB, log *zap.SugaredLogger, entity string, mapper Mapper[E, Req, Resp]) *CRUD[E, Req, Resp] {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(E)); err != nil {
		// Models are static; a parse failure is a programming error.
		panic(errors.Wrapf(err, "failed to parse schema of %s", entity))
	}
	return &CRUD[E, Req, Resp]{
		db:     db,
		log:    log,
		entity: entity,
		mapper: mapper,
		schema: stmt.Schema,
	}
}

// Create validates and persists a new entity
func (c *CRUD[E, Req, Resp]) Create(ctx context.Context, req *Req) (Resp, error) {
	return c.createWith(ctx, req, nil)
}

// createWith is Create with an extra step run after the insert, inside the
// same transaction. An error from after rolls the insert back.
func (c *CRUD[E, Req, Resp]) createWith(ctx context.Context, req *Req, after func(tx *gorm.DB, e *E) error) (Resp, error) {
	var resp Resp
	if fields := api.Validate(req); fields != nil {
		return resp, newValidationError(fields)
	}

	var id interface{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := c.mapper.ToEntity(tx, req)
		if err != nil {
			return err
		}
		if u, ok := c.mapper.(UniqueChecker[E]); ok {
			if err := u.CheckUnique(tx, e); err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Create(e).Error; err != nil {
			return translateStoreError(err)
		}
		id = c.idOf(e)
		if after != nil {
			if err := after(tx, e); err != nil {
				return err
			}
		}
		if err := c.reload(tx, e); err != nil {
			return err
		}
		resp, err = c.respondOne(tx, e)
		return err
	})
	metrics.RecordOperation(c.entity, metrics.OpCreate, err)
	if err != nil {
		return resp, err
	}

	c.log.Infow("Entity created", "entity", c.entity, "id", id)
	return resp, nil
}

// GetByID returns the entity with the given id, or nil when there is none.
// Soft-deleted rows are returned.
func (c *CRUD[E, Req, Resp]) GetByID(ctx context.Context, id uint) (*Resp, error) {
	db := c.db.WithContext(ctx)
	e, err := c.find(db, id)
	if err != nil || e == nil {
		return nil, err
	}
	resp, err := c.respondOne(db, e)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns one page of live entities
func (c *CRUD[E, Req, Resp]) List(ctx context.Context, p api.PageRequest) (api.Page[Resp], error) {
	return c.ListWhere(ctx, p)
}

// ListWhere returns one page of live entities matching every scope
func (c *CRUD[E, Req, Resp]) ListWhere(ctx context.Context, p api.PageRequest, scopes ...Scope) (api.Page[Resp], error) {
	p = p.Normalize()
	db := c.db.WithContext(ctx)

	var total int64
	if err := c.query(db, scopes).Count(&total).Error; err != nil {
		return api.Page[Resp]{}, errors.Wrapf(err, "failed to count %s", c.entity)
	}

	var rows []E
	err := c.order(c.preload(c.query(db, scopes)), p).
		Offset(p.Offset()).
		Limit(p.PerPage).
		Find(&rows).Error
	if err != nil {
		return api.Page[Resp]{}, errors.Wrapf(err, "failed to list %s", c.entity)
	}

	resps, err := c.respond(db, rows)
	if err != nil {
		return api.Page[Resp]{}, err
	}
	return api.NewPage(resps, p, total), nil
}

// FindAll returns every live entity matching the scopes, in default order
func (c *CRUD[E, Req, Resp]) FindAll(ctx context.Context, scopes ...Scope) ([]Resp, error) {
	db := c.db.WithContext(ctx)
	var rows []E
	if err := c.preload(c.query(db, scopes)).Order(c.defaultOrder()).Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", c.entity)
	}
	return c.respond(db, rows)
}

// FindOne returns the first live entity matching the scopes, or nil
func (c *CRUD[E, Req, Resp]) FindOne(ctx context.Context, scopes ...Scope) (*Resp, error) {
	db := c.db.WithContext(ctx)
	var rows []E
	if err := c.preload(c.query(db, scopes)).Order(c.defaultOrder()).Limit(1).Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", c.entity)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	resp, err := c.respondOne(db, &rows[0])
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Count returns the number of live entities
func (c *CRUD[E, Req, Resp]) Count(ctx context.Context) (int64, error) {
	return c.CountWhere(ctx)
}

// CountWhere returns the number of live entities matching every scope
func (c *CRUD[E, Req, Resp]) CountWhere(ctx context.Context, scopes ...Scope) (int64, error) {
	var total int64
	if err := c.query(c.db.WithContext(ctx), scopes).Count(&total).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to count %s", c.entity)
	}
	return total, nil
}

// Update applies a partial update. Fields present in req are validated like
// on create. Returns nil when the entity does not exist.
func (c *CRUD[E, Req, Resp]) Update(ctx context.Context, id uint, req *Req) (*Resp, error) {
	if fields := api.ValidatePresent(req); fields != nil {
		return nil, newValidationError(fields)
	}
	return c.mutate(ctx, id, metrics.OpUpdate, func(tx *gorm.DB, e *E) error {
		return c.mapper.ApplyUpdate(tx, e, req)
	})
}

// Delete removes the entity. Soft-deletable entities are flagged instead.
// Deleting an absent entity is a no-op.
func (c *CRUD[E, Req, Resp]) Delete(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if d, ok := c.mapper.(Deleter); ok {
			return d.Delete(tx, id)
		}
		e, err := c.find(tx, id)
		if err != nil || e == nil {
			return err
		}
		if d, ok := any(e).(database.Deletable); ok {
			if d.Deleted() {
				return nil
			}
			d.MarkDeleted(database.Now())
			return tx.Omit(clause.Associations).Save(e).Error
		}
		return tx.Delete(e).Error
	})
	metrics.RecordOperation(c.entity, metrics.OpDelete, err)
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s %d", c.entity, id)
	}

	c.log.Infow("Entity deleted", "entity", c.entity, "id", id, "soft", database.IsDeletable(new(E)))
	return nil
}

// mutate loads the entity, applies fn, saves and reloads it in one transaction.
// Returns nil when the entity does not exist.
func (c *CRUD[E, Req, Resp]) mutate(ctx context.Context, id uint, op string, fn func(tx *gorm.DB, e *E) error) (*Resp, error) {
	var resp *Resp
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := c.find(tx, id)
		if err != nil || e == nil {
			return err
		}
		if err := fn(tx, e); err != nil {
			return err
		}
		if u, ok := c.mapper.(UniqueChecker[E]); ok {
			if err := u.CheckUnique(tx, e); err != nil {
				return err
			}
		}
		if err := tx.Omit(clause.Associations).Save(e).Error; err != nil {
			return translateStoreError(err)
		}
		if err := c.reload(tx, e); err != nil {
			return err
		}
		r, err := c.respondOne(tx, e)
		if err != nil {
			return err
		}
		resp = &r
		return nil
	})
	if resp != nil || err != nil {
		metrics.RecordOperation(c.entity, op, err)
	}
	if err != nil {
		return nil, err
	}
	if resp != nil {
		c.log.Debugw("Entity updated", "entity", c.entity, "id", id, "operation", op)
	}
	return resp, nil
}

// mustMutate is mutate for lifecycle operations: a missing entity is ErrNotFound.
func (c *CRUD[E, Req, Resp]) mustMutate(ctx context.Context, id uint, op string, fn func(tx *gorm.DB, e *E) error) (Resp, error) {
	resp, err := c.mutate(ctx, id, op, fn)
	if err != nil {
		var zero Resp
		return zero, err
	}
	if resp == nil {
		var zero Resp
		return zero, notFound(c.entity, id)
	}
	return *resp, nil
}

func (c *CRUD[E, Req, Resp]) find(db *gorm.DB, id uint) (*E, error) {
	e := new(E)
	err := c.preload(db).First(e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s %d", c.entity, id)
	}
	return e, nil
}

// reload refreshes e and its associations from the store
func (c *CRUD[E, Req, Resp]) reload(db *gorm.DB, e *E) error {
	return c.preload(db).First(e).Error
}

func (c *CRUD[E, Req, Resp]) query(db *gorm.DB, scopes []Scope) *gorm.DB {
	q := db.Model(new(E))
	if database.IsDeletable(new(E)) {
		q = q.Scopes(database.NotDeleted)
	}
	return q.Scopes(scopes...)
}

func (c *CRUD[E, Req, Resp]) preload(db *gorm.DB) *gorm.DB {
	if p, ok := c.mapper.(Preloader); ok {
		return p.Preload(db)
	}
	return db
}

func (c *CRUD[E, Req, Resp]) defaultOrder() string {
	if o, ok := c.mapper.(Orderer); ok {
		return o.DefaultOrder()
	}
	return "id ASC"
}

// order honours the requested sort when it names a real column,
// otherwise falls back to the default order. The id breaks ties so pages are stable.
func (c *CRUD[E, Req, Resp]) order(q *gorm.DB, p api.PageRequest) *gorm.DB {
	name, desc := p.SortField()
	if name == "" {
		return q.Order(c.defaultOrder())
	}
	field := c.schema.LookUpField(name)
	if field == nil || field.DBName == "" {
		c.log.Debugw("Ignoring unknown sort field", "entity", c.entity, "sort", name)
		return q.Order(c.defaultOrder())
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: field.DBName}, Desc: desc})
	if pk := c.schema.PrioritizedPrimaryField; pk != nil && pk.DBName != field.DBName {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: pk.DBName}})
	}
	return q
}

func (c *CRUD[E, Req, Resp]) idOf(e *E) interface{} {
	pk := c.schema.PrioritizedPrimaryField
	if pk == nil {
		return nil
	}
	v, _ := pk.ValueOf(context.Background(), reflect.ValueOf(e).Elem())
	return v
}

func (c *CRUD[E, Req, Resp]) respond(db *gorm.DB, rows []E) ([]Resp, error) {
	resps := make([]Resp, 0, len(rows))
	for i := range rows {
		resps = append(resps, c.mapper.ToResponse(&rows[i]))
	}
	if d, ok := c.mapper.(Decorator[Resp]); ok {
		if err := d.Decorate(db, resps); err != nil {
			return nil, errors.Wrapf(err, "failed to decorate %s", c.entity)
		}
	}
	return resps, nil
}

func (c *CRUD[E, Req, Resp]) respondOne(db *gorm.DB, e *E) (Resp, error) {
	resps, err := c.respond(db, []E{*e})
	if err != nil {
		var zero Resp
		return zero, err
	}
	return resps[0], nil
}

// ========== Foreign key resolution ==========

// resolveRef loads a live row by id. Soft-deleted rows count as missing.
func resolveRef[T any](tx *gorm.DB, entity string, id uint) (*T, error) {
	row := new(T)
	q := tx
	if database.IsDeletable(row) {
		q = q.Scopes(database.NotDeleted)
	}
	err := q.First(row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(entity, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s %d", entity, id)
	}
	return row, nil
}

// resolveOptionalRef resolves id when it is set; nil id yields nil
func resolveOptionalRef[T any](tx *gorm.DB, entity string, id *uint) (*T, error) {
	if id == nil {
		return nil, nil
	}
	return resolveRef[T](tx, entity, *id)
}

// resolveForUpdate resolves a replacement reference for a partial update.
// ok is false when id is nil or does not resolve; the caller keeps the old reference.
func resolveForUpdate[T any](tx *gorm.DB, entity string, id *uint) (row *T, ok bool, err error) {
	if id == nil {
		return nil, false, nil
	}
	row, err = resolveRef[T](tx, entity, *id)
	if IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// checkUniqueColumn fails with ErrConflict when another live row of the
// model already holds value in column.
func checkUniqueColumn(tx *gorm.DB, model interface{}, entity, column, value string, selfID uint) error {
	var n int64
	err := tx.Model(model).
		Scopes(database.NotDeleted).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Where("id <> ?", selfID).
		Count(&n).Error
	if err != nil {
		return errors.Wrapf(err, "failed to check %s uniqueness", entity)
	}
	if n > 0 {
		return conflict("%s with %s %q already exists", entity, column, value)
	}
	return nil
}

// ========== Shared scopes ==========

func whereEq(column string, value interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	}
}

func createdBetween(start, end time.Time) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("created_at >= ? AND created_at <= ?", start.UTC(), end.UTC())
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
