package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("fruit not found")

type Store struct{ DB *pgxpool.Pool }

// fruitCols joins categories so every fruit read carries its unit. A fruit
// without a category defaults to kg.
const fruitCols = `
	SELECT f.id, f.name, COALESCE(f.description,''), f.price, f.stock, f.image,
	       f.category_id, COALESCE(c.name,''), COALESCE(c.unit,'kg'),
	       f.created_at, f.updated_at
	FROM fruits f
	LEFT JOIN categories c ON f.category_id = c.id`

func scanFruit(row pgx.Row) (Fruit, error) {
	var f Fruit
	err := row.Scan(&f.ID, &f.Name, &f.Description, &f.Price, &f.Stock, &f.Image,
		&f.CategoryID, &f.CategoryName, &f.Unit, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (s *Store) GetFruitByID(ctx context.Context, id int64) (Fruit, error) {
	f, err := scanFruit(s.DB.QueryRow(ctx, fruitCols+` WHERE f.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Fruit{}, ErrNotFound
	}
	return f, err
}

func (s *Store) ListFruits(ctx context.Context) ([]Fruit, error) {
	rows, err := s.DB.Query(ctx, fruitCols+` ORDER BY f.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFruits(rows)
}

func (s *Store) ListFruitsByCategory(ctx context.Context, categoryName string) ([]Fruit, error) {
	rows, err := s.DB.Query(ctx, fruitCols+` WHERE c.name=$1 ORDER BY f.id`, categoryName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFruits(rows)
}

func collectFruits(rows pgx.Rows) ([]Fruit, error) {
	var out []Fruit
	for rows.Next() {
		f, err := scanFruit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) CreateFruit(ctx context.Context, f Fruit) (Fruit, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO fruits (name, description, price, stock, image, category_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		f.Name, f.Description, f.Price, f.Stock, f.Image, f.CategoryID,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

func (s *Store) UpdateFruit(ctx context.Context, f Fruit) (Fruit, error) {
	err := s.DB.QueryRow(ctx, `
		UPDATE fruits
		SET name=$1, description=$2, price=$3, stock=$4, image=$5, category_id=$6,
		    updated_at=CURRENT_TIMESTAMP
		WHERE id=$7
		RETURNING created_at, updated_at`,
		f.Name, f.Description, f.Price, f.Stock, f.Image, f.CategoryID, f.ID,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Fruit{}, ErrNotFound
	}
	return f, err
}

func (s *Store) DeleteFruit(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM fruits WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PopularFruits ranks fruits by total quantity ordered across all orders.
func (s *Store) PopularFruits(ctx context.Context, limit int) ([]PopularFruit, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT oi.fruit_id, f.name, SUM(oi.quantity) AS total_quantity,
		       COUNT(DISTINCT oi.order_id) AS order_count
		FROM order_items oi
		JOIN fruits f ON oi.fruit_id = f.id
		GROUP BY oi.fruit_id, f.name
		ORDER BY total_quantity DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PopularFruit
	for rows.Next() {
		var p PopularFruit
		if err := rows.Scan(&p.FruitID, &p.Name, &p.TotalQuantity, &p.OrderCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MostBoughtByUser ranks fruits a user actually paid for.
func (s *Store) MostBoughtByUser(ctx context.Context, userID int64, limit int) ([]PopularFruit, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT oi.fruit_id, f.name, SUM(oi.quantity) AS total_quantity,
		       COUNT(DISTINCT oi.order_id) AS order_count
		FROM order_items oi
		JOIN orders o ON oi.order_id = o.id
		JOIN fruits f ON oi.fruit_id = f.id
		WHERE o.user_id = $1 AND o.status IN ('paid','completed')
		GROUP BY oi.fruit_id, f.name
		ORDER BY total_quantity DESC, order_count DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PopularFruit
	for rows.Next() {
		var p PopularFruit
		if err := rows.Scan(&p.FruitID, &p.Name, &p.TotalQuantity, &p.OrderCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Categories

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name, COALESCE(unit,'kg'), created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Unit, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, name string, unit Unit) (Category, error) {
	var c Category
	err := s.DB.QueryRow(ctx, `
		INSERT INTO categories (name, unit) VALUES ($1,$2)
		RETURNING id, name, unit, created_at`, name, unit,
	).Scan(&c.ID, &c.Name, &c.Unit, &c.CreatedAt)
	return c, err
}

func (s *Store) UpdateCategory(ctx context.Context, id int64, name string, unit Unit) (Category, error) {
	var c Category
	err := s.DB.QueryRow(ctx, `
		UPDATE categories SET name=$1, unit=$2 WHERE id=$3
		RETURNING id, name, unit, created_at`, name, unit, id,
	).Scan(&c.ID, &c.Name, &c.Unit, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
