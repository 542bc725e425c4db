package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// errNotFound is returned by stores when the addressed row does not exist
// for the requesting user.
var errNotFound = errors.New("not found")

// mealRangeQuerier is the read side of the meal log: entries for one user
// with start <= date < end, oldest first.
type mealRangeQuerier interface {
	queryRange(ctx context.Context, userID int, start, end time.Time) ([]mealEntry, error)
}

// mealLogStore is the meal log repository. Every write is durable when it
// returns; there is no separate commit step.
type mealLogStore interface {
	mealRangeQuerier
	insert(ctx context.Context, e *mealEntry) (mealEntry, error)
	get(ctx context.Context, userID int, id uuid.UUID) (mealEntry, error)
	update(ctx context.Context, e *mealEntry) (mealEntry, error)
	delete(ctx context.Context, userID int, id uuid.UUID) error
}

// profileStore holds body profiles. current returns the most recently
// updated profile when a user somehow has several.
type profileStore interface {
	current(ctx context.Context, userID int) (profile, error)
	save(ctx context.Context, p *profile) (profile, error)
}

/* ─── Postgres implementation ────────────────────────────────────────── */

// pgStore implements mealLogStore and profileStore on a pgx pool.
type pgStore struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

func newPGStore(db *pgxpool.Pool, log *zap.Logger) *pgStore {
	return &pgStore{db: db, log: log.With(zap.String("component", "pgStore"))}
}

// queryOne runs a query and scans the first row into T using RowToStructByName.
// pgx.ErrNoRows becomes errNotFound; other failures are logged.
func queryOne[T any](ctx context.Context, s *pgStore, sql string, args pgx.NamedArgs) (T, error) {
	var zero T
	rows, err := s.db.Query(ctx, sql, args)
	if err != nil {
		s.log.Error("query failed", zap.Error(err))
		return zero, err
	}
	result, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, errNotFound
	}
	if err != nil {
		s.log.Error("scan failed", zap.Error(err))
	}
	return result, err
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
func queryMany[T any](ctx context.Context, s *pgStore, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := s.db.Query(ctx, sql, args)
	if err != nil {
		s.log.Error("query failed", zap.Error(err))
		return nil, err
	}
	results, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		s.log.Error("scan failed", zap.Error(err))
	}
	return results, err
}

func (s *pgStore) queryRange(ctx context.Context, userID int, start, end time.Time) ([]mealEntry, error) {
	return queryMany[mealEntry](ctx, s,
		`SELECT * FROM meal_entries
		 WHERE user_id = @userID AND eaten_at >= @start AND eaten_at < @end
		 ORDER BY eaten_at ASC`,
		pgx.NamedArgs{"userID": userID, "start": start, "end": end})
}

func (s *pgStore) insert(ctx context.Context, e *mealEntry) (mealEntry, error) {
	return queryOne[mealEntry](ctx, s,
		`INSERT INTO meal_entries (id, user_id, eaten_at, slot, label, portion_grams,
		                           calories, protein_g, carbs_g, fat_g, thumbnail)
		 VALUES (@id, @userID, @date, @slot, @label, @portionGrams,
		         @calories, @proteinG, @carbsG, @fatG, @thumbnail)
		 RETURNING *`,
		pgx.NamedArgs{
			"id": e.ID, "userID": e.UserID, "date": e.Date, "slot": string(e.Slot),
			"label": e.Label, "portionGrams": e.PortionGrams, "calories": e.Calories,
			"proteinG": e.ProteinG, "carbsG": e.CarbsG, "fatG": e.FatG,
			"thumbnail": e.Thumbnail,
		})
}

func (s *pgStore) get(ctx context.Context, userID int, id uuid.UUID) (mealEntry, error) {
	return queryOne[mealEntry](ctx, s,
		"SELECT * FROM meal_entries WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID})
}

func (s *pgStore) update(ctx context.Context, e *mealEntry) (mealEntry, error) {
	return queryOne[mealEntry](ctx, s,
		`UPDATE meal_entries SET
			eaten_at = @date,
			slot = @slot,
			label = @label,
			portion_grams = @portionGrams,
			calories = @calories,
			protein_g = @proteinG,
			carbs_g = @carbsG,
			fat_g = @fatG,
			updated_at = now()
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`,
		pgx.NamedArgs{
			"id": e.ID, "userID": e.UserID, "date": e.Date, "slot": string(e.Slot),
			"label": e.Label, "portionGrams": e.PortionGrams, "calories": e.Calories,
			"proteinG": e.ProteinG, "carbsG": e.CarbsG, "fatG": e.FatG,
		})
}

func (s *pgStore) delete(ctx context.Context, userID int, id uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM meal_entries WHERE id = @id AND user_id = @userID",
		pgx.NamedArgs{"id": id, "userID": userID})
	if err != nil {
		return fmt.Errorf("delete meal %s: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return errNotFound
	}
	return nil
}

func (s *pgStore) current(ctx context.Context, userID int) (profile, error) {
	return queryOne[profile](ctx, s,
		`SELECT * FROM profiles WHERE user_id = @userID
		 ORDER BY last_updated DESC LIMIT 1`,
		pgx.NamedArgs{"userID": userID})
}

// save inserts p when it has no ID yet, otherwise overwrites the row.
func (s *pgStore) save(ctx context.Context, p *profile) (profile, error) {
	args := pgx.NamedArgs{
		"id": p.ID, "userID": p.UserID, "sex": string(p.Sex), "age": p.Age,
		"heightCM": p.HeightCM, "weightKG": p.WeightKG,
		"activityLevel": string(p.ActivityLevel), "goal": string(p.Goal),
		"calorieTarget": p.CalorieTarget, "lastUpdated": p.LastUpdated,
	}
	if p.ID == 0 {
		return queryOne[profile](ctx, s,
			`INSERT INTO profiles (user_id, sex, age, height_cm, weight_kg, activity_level,
			                       goal, calorie_target, last_updated)
			 VALUES (@userID, @sex, @age, @heightCM, @weightKG, @activityLevel,
			         @goal, @calorieTarget, @lastUpdated)
			 RETURNING *`, args)
	}
	return queryOne[profile](ctx, s,
		`UPDATE profiles SET
			sex = @sex, age = @age, height_cm = @heightCM, weight_kg = @weightKG,
			activity_level = @activityLevel, goal = @goal,
			calorie_target = @calorieTarget, last_updated = @lastUpdated
		 WHERE id = @id AND user_id = @userID
		 RETURNING *`, args)
}

// syncTargets lists every user with a profile, with their timezone, for the
// health sync job.
func (s *pgStore) syncTargets(ctx context.Context) ([]user, error) {
	return queryMany[user](ctx, s,
		`SELECT u.* FROM users u
		 WHERE EXISTS (SELECT 1 FROM profiles p WHERE p.user_id = u.id)
		 ORDER BY u.id`, pgx.NamedArgs{})
}

// userByToken resolves a bearer token to its user.
func (s *pgStore) userByToken(ctx context.Context, token string) (user, error) {
	return queryOne[user](ctx, s,
		"SELECT * FROM users WHERE auth_token = @token",
		pgx.NamedArgs{"token": token})
}

// userByUsername looks up a user for login.
func (s *pgStore) userByUsername(ctx context.Context, username string) (user, error) {
	return queryOne[user](ctx, s,
		"SELECT * FROM users WHERE username = @username",
		pgx.NamedArgs{"username": username})
}
