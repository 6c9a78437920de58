package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stash/internal/field"
)

var ErrConflict = errors.New("conflict")

// Asset is a row of the assets table. File and Image hold only the stored
// names; their descriptors resolve size and path through the backend.
type Asset struct {
	ID        uuid.UUID
	Label     string
	File      field.Value[*field.StoredFile]
	Image     field.Value[*field.ImageFile]
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AssetTx is the set of writes available inside InTx.
type AssetTx interface {
	InsertAsset(ctx context.Context, a Asset) (Asset, error)
	LockAsset(ctx context.Context, id uuid.UUID) (Asset, error)
	UpdateAsset(ctx context.Context, a Asset) (Asset, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error
}

type Store struct {
	db     *pgxpool.Pool
	files  *field.FileType
	images *field.ImageType
}

func New(db *pgxpool.Pool, files *field.FileType, images *field.ImageType) *Store {
	return &Store{db: db, files: files, images: images}
}

const assetColumns = `id, label, file, image, created_at, updated_at`

func (s *Store) scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(
		&a.ID,
		&a.Label,
		s.files.Column(&a.File),
		s.images.Column(&a.Image),
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (s *Store) GetAsset(ctx context.Context, id uuid.UUID) (Asset, error) {
	return s.scanAsset(s.db.QueryRow(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE id = $1
	`, id))
}

func (s *Store) ListAssets(ctx context.Context, limit int, offset int) ([]Asset, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, err := s.scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(AssetTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&assetTx{tx: tx, s: s}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type assetTx struct {
	tx pgx.Tx
	s  *Store
}

func (t *assetTx) InsertAsset(ctx context.Context, a Asset) (Asset, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	out, err := t.s.scanAsset(t.tx.QueryRow(ctx, `
		INSERT INTO assets (id, label, file, image)
		VALUES ($1, $2, $3, $4)
		RETURNING `+assetColumns,
		a.ID, a.Label, a.File, a.Image))
	if err != nil {
		if isUniqueViolation(err) {
			return Asset{}, ErrConflict
		}
		return Asset{}, err
	}
	return out, nil
}

func (t *assetTx) LockAsset(ctx context.Context, id uuid.UUID) (Asset, error) {
	return t.s.scanAsset(t.tx.QueryRow(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (t *assetTx) UpdateAsset(ctx context.Context, a Asset) (Asset, error) {
	return t.s.scanAsset(t.tx.QueryRow(ctx, `
		UPDATE assets
		SET label = $2, file = $3, image = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+assetColumns,
		a.ID, a.Label, a.File, a.Image))
}

func (t *assetTx) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
