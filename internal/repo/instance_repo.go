package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Grantflow/internal/config"
)

const instanceColumns = `
	family, name, base_url, bearer_token, username, password,
	connection_timeout_ms, read_timeout_ms, trust_all_certificates,
	folder_id, is_default`

// InstanceRepo — репозиторий таблицы backend_instances.
type InstanceRepo struct {
	pool *pgxpool.Pool
}

// NewInstanceRepo создаёт новый InstanceRepo.
func NewInstanceRepo(pool *pgxpool.Pool) *InstanceRepo {
	return &InstanceRepo{pool: pool}
}

// List возвращает все включённые инстансы в порядке (family, position, name).
func (r *InstanceRepo) List(ctx context.Context) ([]config.FamilyInstance, error) {
	query := `SELECT` + instanceColumns + `
		FROM backend_instances
		WHERE enabled
		ORDER BY family, position, name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// ListFamily возвращает включённые инстансы одного семейства.
func (r *InstanceRepo) ListFamily(ctx context.Context, family string) ([]config.FamilyInstance, error) {
	query := `SELECT` + instanceColumns + `
		FROM backend_instances
		WHERE enabled AND family = $1
		ORDER BY position, name
	`
	rows, err := r.pool.Query(ctx, query, family)
	if err != nil {
		return nil, fmt.Errorf("list %s instances: %w", family, err)
	}
	defer rows.Close()

	return collectInstances(rows)
}

// Get возвращает инстанс по (family, name).
func (r *InstanceRepo) Get(ctx context.Context, family, name string) (*config.FamilyInstance, error) {
	query := `SELECT` + instanceColumns + `
		FROM backend_instances
		WHERE family = $1 AND name = $2
	`
	fi, err := scanInstance(r.pool.QueryRow(ctx, query, family, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return fi, nil
}

func collectInstances(rows pgx.Rows) ([]config.FamilyInstance, error) {
	var list []config.FamilyInstance
	for rows.Next() {
		fi, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		list = append(list, *fi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return list, nil
}

// scanInstance читает строку в порядке instanceColumns.
func scanInstance(row pgx.Row) (*config.FamilyInstance, error) {
	var fi config.FamilyInstance
	err := row.Scan(
		&fi.Family,
		&fi.Instance.Name,
		&fi.Instance.BaseURL,
		&fi.Instance.BearerToken,
		&fi.Instance.Username,
		&fi.Instance.Password,
		&fi.Instance.ConnectionTimeoutMs,
		&fi.Instance.ReadTimeoutMs,
		&fi.Instance.TrustAllCertificates,
		&fi.Instance.FolderID,
		&fi.IsDefault,
	)
	if err != nil {
		return nil, err
	}
	return &fi, nil
}

// LoadInto дополняет backends строками из БД и проверяет результат.
func (r *InstanceRepo) LoadInto(ctx context.Context, backends *config.Backends) (int, error) {
	list, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	backends.Merge(list)
	if err := backends.Validate(); err != nil {
		return 0, err
	}
	return len(list), nil
}
