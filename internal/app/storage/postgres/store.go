package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/filmbay/rental-service/internal/app/domain/interaction"
	"github.com/filmbay/rental-service/internal/app/domain/movie"
	"github.com/filmbay/rental-service/internal/app/domain/order"
	"github.com/filmbay/rental-service/internal/app/domain/user"
	"github.com/filmbay/rental-service/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.MovieStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.InteractionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username))
}

func (s *Store) UpdateUserRole(ctx context.Context, id int64, role user.Role) (user.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET role = $2, updated_at = $3
		WHERE id = $1
	`, id, role, time.Now().UTC())
	if err != nil {
		return user.User{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

// --- MovieStore -------------------------------------------------------------

func (s *Store) CreateMovie(ctx context.Context, m movie.Movie) (movie.Movie, error) {
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	imagesJSON, err := json.Marshal(m.Images)
	if err != nil {
		return movie.Movie{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO movies (title, description, stock, rental_price, sale_price, availability, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, m.Title, m.Description, m.Stock, m.RentalPrice, m.SalePrice, m.Availability, imagesJSON, m.CreatedAt, m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		return movie.Movie{}, mapError(err)
	}
	return m, nil
}

func (s *Store) GetMovie(ctx context.Context, id int64) (movie.Movie, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, stock, rental_price, sale_price, availability, images, created_at, updated_at
		FROM movies
		WHERE id = $1
	`, id)
	return scanMovie(row.Scan)
}

func (s *Store) ListMovies(ctx context.Context, q movie.ListQuery) ([]movie.Movie, error) {
	sortKey := q.Sort
	if _, ok := movie.SortKeys[sortKey]; !ok {
		sortKey = "title"
	}
	direction := "ASC"
	if strings.EqualFold(q.Order, "desc") {
		direction = "DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT id, title, description, stock, rental_price, sale_price, availability, images, created_at, updated_at
		FROM movies
		WHERE ($1 = '' OR title ILIKE '%%' || $1 || '%%')
		  AND ($2::boolean IS NULL OR availability = $2)
		ORDER BY %s %s
		LIMIT $3 OFFSET $4
	`, sortKey, direction)

	var availability sql.NullBool
	if q.Availability != nil {
		availability = sql.NullBool{Bool: *q.Availability, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, query, q.Title, availability, limit, q.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []movie.Movie
	for rows.Next() {
		m, err := scanMovie(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) UpdateMovie(ctx context.Context, m movie.Movie) (movie.Movie, error) {
	m.UpdatedAt = time.Now().UTC()

	imagesJSON, err := json.Marshal(m.Images)
	if err != nil {
		return movie.Movie{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE movies
		SET title = $2, description = $3, stock = $4, rental_price = $5, sale_price = $6, availability = $7, images = $8, updated_at = $9
		WHERE id = $1
	`, m.ID, m.Title, m.Description, m.Stock, m.RentalPrice, m.SalePrice, m.Availability, imagesJSON, m.UpdatedAt)
	if err != nil {
		return movie.Movie{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return movie.Movie{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) AdjustStock(ctx context.Context, id int64, delta int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE movies
		SET stock = stock + $2, updated_at = $3
		WHERE id = $1 AND stock + $2 >= 0
	`, id, delta, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		if _, err := s.GetMovie(ctx, id); err != nil {
			return err
		}
		return storage.ErrOutOfStock
	}
	return nil
}

func (s *Store) SetMovieAvailability(ctx context.Context, id int64, available bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE movies SET availability = $2, updated_at = $3 WHERE id = $1
	`, id, available, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMovie(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM movies WHERE id = $1
	`, id)
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanMovie(scan func(dest ...interface{}) error) (movie.Movie, error) {
	var (
		m         movie.Movie
		imagesRaw []byte
	)
	err := scan(&m.ID, &m.Title, &m.Description, &m.Stock, &m.RentalPrice, &m.SalePrice, &m.Availability, &imagesRaw, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return movie.Movie{}, mapError(err)
	}
	if len(imagesRaw) > 0 {
		_ = json.Unmarshal(imagesRaw, &m.Images)
	}
	return m, nil
}

// --- OrderStore -------------------------------------------------------------

func (s *Store) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, movie_id, order_type, price_paid, ordered_at, expected_return_date, returned_date, delay_penalty_paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, o.UserID, o.MovieID, o.Type, o.PricePaid, o.OrderedAt, nullTime(o.ExpectedReturnDate), nullTime(o.ReturnedDate), o.DelayPenaltyPaid).Scan(&o.ID)
	if err != nil {
		return order.Order{}, mapError(err)
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, movie_id, order_type, price_paid, ordered_at, expected_return_date, returned_date, delay_penalty_paid
		FROM orders
		WHERE id = $1
	`, id)
	return scanOrder(row.Scan)
}

func (s *Store) UpdateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET returned_date = $2, delay_penalty_paid = $3
		WHERE id = $1
	`, o.ID, nullTime(o.ReturnedDate), o.DelayPenaltyPaid)
	if err != nil {
		return order.Order{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return order.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, movie_id, order_type, price_paid, ordered_at, expected_return_date, returned_date, delay_penalty_paid
		FROM orders
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *Store) ListOverdueRentals(ctx context.Context, asOf time.Time) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, movie_id, order_type, price_paid, ordered_at, expected_return_date, returned_date, delay_penalty_paid
		FROM orders
		WHERE order_type = 'rental'
		  AND returned_date IS NULL
		  AND expected_return_date < $1
		ORDER BY expected_return_date
	`, asOf)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]order.Order, error) {
	var result []order.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanOrder(scan func(dest ...interface{}) error) (order.Order, error) {
	var (
		o        order.Order
		expected sql.NullTime
		returned sql.NullTime
	)
	err := scan(&o.ID, &o.UserID, &o.MovieID, &o.Type, &o.PricePaid, &o.OrderedAt, &expected, &returned, &o.DelayPenaltyPaid)
	if err != nil {
		return order.Order{}, mapError(err)
	}
	if expected.Valid {
		t := expected.Time
		o.ExpectedReturnDate = &t
	}
	if returned.Valid {
		t := returned.Time
		o.ReturnedDate = &t
	}
	return o, nil
}

// --- InteractionStore -------------------------------------------------------

func (s *Store) CreateInteraction(ctx context.Context, in interaction.Interaction) (interaction.Interaction, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO interactions (user_id, movie_id, interaction_type, interaction_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, in.UserID, in.MovieID, in.Type, in.At).Scan(&in.ID)
	if err != nil {
		// an insert hitting a foreign key means the movie (or user) is gone
		if errors.Is(mapError(err), storage.ErrReferenced) {
			return interaction.Interaction{}, storage.ErrNotFound
		}
		return interaction.Interaction{}, mapError(err)
	}
	return in, nil
}

func (s *Store) ListMovieInteractions(ctx context.Context, movieID int64) ([]interaction.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, movie_id, interaction_type, interaction_at
		FROM interactions
		WHERE movie_id = $1
		ORDER BY id
	`, movieID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []interaction.Interaction
	for rows.Next() {
		var in interaction.Interaction
		if err := rows.Scan(&in.ID, &in.UserID, &in.MovieID, &in.Type, &in.At); err != nil {
			return nil, mapError(err)
		}
		result = append(result, in)
	}
	return result, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// mapError translates driver errors into storage sentinels.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return storage.ErrDuplicate
		case "23503": // foreign_key_violation
			return storage.ErrReferenced
		}
	}
	return err
}
