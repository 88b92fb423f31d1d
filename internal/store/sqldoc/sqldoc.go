// Package sqldoc stores documents as JSON bodies in a relational database
// through GORM. Each collection is a table of (id, created_at, body); scalar
// fields are addressed with the ->> operator, which PostgreSQL (jsonb) and
// SQLite both support.
package sqldoc

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"lumen/internal/query"
	"lumen/internal/store"
	"lumen/internal/store/bsondoc"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/v2/bson"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type documentRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	CreatedAt time.Time `gorm:"not null"`
	Body      string    `gorm:"type:jsonb;not null"`
}

// Collection is a store.Collection backed by one table.
type Collection[T any] struct {
	db   *gorm.DB
	name string
}

var _ store.Collection[struct{}] = (*Collection[struct{}])(nil)

// NewCollection returns a collection stored in table name.
func NewCollection[T any](db *gorm.DB, name string) (*Collection[T], error) {
	if !identPattern.MatchString(name) {
		return nil, fmt.Errorf("invalid collection name %q", name)
	}
	return &Collection[T]{db: db, name: name}, nil
}

// Name returns the table name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Migrate creates the table, its created_at index and a unique expression
// index over each of the given body fields.
func (c *Collection[T]) Migrate(ctx context.Context, unique ...string) error {
	db := c.db.WithContext(ctx)
	if err := db.Table(c.name).AutoMigrate(&documentRow{}); err != nil {
		return store.Wrap(c.name, "migrate", err)
	}
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at)", c.name, c.name),
	}
	for _, field := range unique {
		col, err := column(field)
		if err != nil {
			return store.Wrap(c.name, "migrate", err)
		}
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_%s ON %s ((%s))",
			c.name, strings.TrimPrefix(field, "_"), c.name, col))
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return store.Wrap(c.name, "migrate", err)
		}
	}
	return nil
}

func (c *Collection[T]) table(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx).Table(c.name)
}

func (c *Collection[T]) decode(op string, r documentRow) (*T, error) {
	doc, err := bsondoc.UnmarshalExtJSON([]byte(r.Body))
	if err != nil {
		return nil, store.Wrap(c.name, op, err)
	}
	out := new(T)
	if err := bsondoc.ToStruct(doc, out); err != nil {
		return nil, store.Wrap(c.name, op, err)
	}
	return out, nil
}

func (c *Collection[T]) decodeAll(op string, rows []documentRow) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, r := range rows {
		v, err := c.decode(op, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FindByID implements store.Collection.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var r documentRow
	err := c.table(ctx).Where("id = ?", id).Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Wrap(c.name, "find_by_id", err)
	}
	return c.decode("find_by_id", r)
}

// FindByIDs implements store.Collection.
func (c *Collection[T]) FindByIDs(ctx context.Context, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	var rows []documentRow
	if err := c.table(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, store.Wrap(c.name, "find_by_ids", err)
	}
	return c.decodeAll("find_by_ids", rows)
}

func (c *Collection[T]) where(ctx context.Context, op string, p query.Predicate) (*gorm.DB, error) {
	sql, args, err := whereClause(p)
	if err != nil {
		return nil, store.Wrap(c.name, op, err)
	}
	return c.table(ctx).Where(sql, args...), nil
}

// FindOne implements store.Collection.
func (c *Collection[T]) FindOne(ctx context.Context, p query.Predicate) (*T, error) {
	db, err := c.where(ctx, "find_one", p)
	if err != nil {
		return nil, err
	}
	var rows []documentRow
	if err := db.Limit(1).Find(&rows).Error; err != nil {
		return nil, store.Wrap(c.name, "find_one", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return c.decode("find_one", rows[0])
}

// Find implements store.Collection.
func (c *Collection[T]) Find(ctx context.Context, p query.Predicate, page store.Page) ([]*T, error) {
	db, err := c.where(ctx, "find", p)
	if err != nil {
		return nil, err
	}
	if page.SortField != "" {
		col, err := column(page.SortField)
		if err != nil {
			return nil, store.Wrap(c.name, "find", err)
		}
		dir := ""
		if page.Descending {
			dir = " DESC"
		}
		order := col + dir
		if col != "id" {
			order += ", id" + dir
		}
		db = db.Order(order)
	}
	if page.Skip > 0 {
		db = db.Offset(page.Skip)
	}
	if page.Limit > 0 {
		db = db.Limit(page.Limit)
	}

	var rows []documentRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, store.Wrap(c.name, "find", err)
	}
	return c.decodeAll("find", rows)
}

// Sample implements store.Collection with ORDER BY RANDOM().
func (c *Collection[T]) Sample(ctx context.Context, p query.Predicate, n int) ([]*T, error) {
	db, err := c.where(ctx, "sample", p)
	if err != nil {
		return nil, err
	}
	var rows []documentRow
	if err := db.Order("RANDOM()").Limit(n).Find(&rows).Error; err != nil {
		return nil, store.Wrap(c.name, "sample", err)
	}
	return c.decodeAll("sample", rows)
}

// Count implements store.Collection.
func (c *Collection[T]) Count(ctx context.Context, p query.Predicate) (int64, error) {
	db, err := c.where(ctx, "count", p)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, store.Wrap(c.name, "count", err)
	}
	return n, nil
}

func encode(doc bson.M) (documentRow, error) {
	id, ok := bsondoc.ID(doc)
	if !ok {
		return documentRow{}, errors.New("document has no string _id")
	}
	createdAt, ok := bsondoc.CreatedAt(doc)
	if !ok {
		createdAt = time.Now().UTC()
	}
	body, err := bsondoc.MarshalExtJSON(doc)
	if err != nil {
		return documentRow{}, err
	}
	return documentRow{ID: id, CreatedAt: createdAt, Body: string(body)}, nil
}

// Insert implements store.Collection.
func (c *Collection[T]) Insert(ctx context.Context, doc *T) error {
	m, err := bsondoc.FromStruct(doc)
	if err != nil {
		return store.Wrap(c.name, "insert", err)
	}
	r, err := encode(m)
	if err != nil {
		return store.Wrap(c.name, "insert", err)
	}
	if err := c.table(ctx).Create(&r).Error; err != nil {
		if isDuplicate(err) {
			err = fmt.Errorf("%w: %w", store.ErrDuplicateKey, err)
		}
		return store.Wrap(c.name, "insert", err)
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// mutate loads the row under a row lock, applies fn to its document and
// writes the body back in one transaction.
func (c *Collection[T]) mutate(ctx context.Context, op, id string, fn func(bson.M) error) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sel := tx.Table(c.name)
		if tx.Dialector.Name() == "postgres" {
			sel = sel.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var r documentRow
		err := sel.Where("id = ?", id).Take(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		doc, err := bsondoc.UnmarshalExtJSON([]byte(r.Body))
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		body, err := bsondoc.MarshalExtJSON(doc)
		if err != nil {
			return err
		}
		return tx.Table(c.name).Where("id = ?", id).Update("body", string(body)).Error
	})
	return store.Wrap(c.name, op, err)
}

// UpdateByID implements store.Collection.
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, patch store.Patch) error {
	return c.mutate(ctx, "update", id, func(doc bson.M) error {
		return bsondoc.ApplyPatch(doc, patch)
	})
}

// DeleteByID implements store.Collection.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) error {
	res := c.table(ctx).Where("id = ?", id).Delete(&documentRow{})
	if res.Error != nil {
		return store.Wrap(c.name, "delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Wrap(c.name, "delete", store.ErrNotFound)
	}
	return nil
}

// AddToSet implements store.Collection.
func (c *Collection[T]) AddToSet(ctx context.Context, id, field string, value any) error {
	return c.mutate(ctx, "add_to_set", id, func(doc bson.M) error {
		return bsondoc.AddToSet(doc, field, value)
	})
}

// Push implements store.Collection.
func (c *Collection[T]) Push(ctx context.Context, id, field string, value any) error {
	return c.mutate(ctx, "push", id, func(doc bson.M) error {
		return bsondoc.Push(doc, field, value)
	})
}

// Pull implements store.Collection.
func (c *Collection[T]) Pull(ctx context.Context, id, field string, value any) error {
	return c.mutate(ctx, "pull", id, func(doc bson.M) error {
		return bsondoc.Pull(doc, field, value)
	})
}

// PullWhere implements store.Collection.
func (c *Collection[T]) PullWhere(ctx context.Context, id, field string, match query.Term) error {
	return c.mutate(ctx, "pull", id, func(doc bson.M) error {
		return bsondoc.PullWhere(doc, field, match)
	})
}
