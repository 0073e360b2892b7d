package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/delivery/internal/dal/interfaces/ideliverypersonrepo"
	"github.com/corray333/backend-labs/delivery/internal/dal/postgres"
	"github.com/corray333/backend-labs/delivery/internal/service/models/deliveryperson"
	"github.com/corray333/backend-labs/delivery/internal/service/models/location"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var personColumns = []string{
	"id",
	"name",
	"vehicle_type",
	"license_plate",
	"latitude",
	"longitude",
	"is_available",
	"created_at",
	"updated_at",
}

// DeliveryPersonDal represents delivery person data access layer model.
type DeliveryPersonDal struct {
	Id           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	VehicleType  string    `db:"vehicle_type"`
	LicensePlate string    `db:"license_plate"`
	Latitude     float64   `db:"latitude"`
	Longitude    float64   `db:"longitude"`
	IsAvailable  bool      `db:"is_available"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ToModel converts DeliveryPersonDal to service layer model.
func (p *DeliveryPersonDal) ToModel() (deliveryperson.DeliveryPerson, error) {
	vehicleType, err := deliveryperson.ParseVehicleType(p.VehicleType)
	if err != nil {
		return deliveryperson.DeliveryPerson{}, err
	}

	return deliveryperson.DeliveryPerson{
		ID:   p.Id,
		Name: p.Name,
		Vehicle: deliveryperson.Vehicle{
			Type:         vehicleType,
			LicensePlate: p.LicensePlate,
		},
		Location: location.Location{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		},
		IsAvailable: p.IsAvailable,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func scanPerson(row pgx.Row) (DeliveryPersonDal, error) {
	var dal DeliveryPersonDal
	err := row.Scan(
		&dal.Id,
		&dal.Name,
		&dal.VehicleType,
		&dal.LicensePlate,
		&dal.Latitude,
		&dal.Longitude,
		&dal.IsAvailable,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)

	return dal, err
}

// DeliveryPersonRepository stores delivery persons and their availability windows.
type DeliveryPersonRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewDeliveryPersonRepository creates a new delivery person repository.
func NewDeliveryPersonRepository(conn postgres.Conn) *DeliveryPersonRepository {
	return &DeliveryPersonRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert adds a delivery person together with any initial availability windows.
func (r *DeliveryPersonRepository) Insert(ctx context.Context, p deliveryperson.DeliveryPerson) error {
	sql, args, err := r.sb.
		Insert("delivery_persons").
		Columns(personColumns...).
		Values(
			p.ID,
			p.Name,
			p.Vehicle.Type.String(),
			p.Vehicle.LicensePlate,
			p.Location.Latitude,
			p.Location.Longitude,
			p.IsAvailable,
			p.CreatedAt,
			p.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert delivery person: %w", err)
	}

	for _, a := range p.Availabilities {
		if err := r.InsertAvailability(ctx, a); err != nil {
			return err
		}
	}

	return nil
}

// GetForUpdate loads a delivery person and locks the row, serializing ledger writes per person.
func (r *DeliveryPersonRepository) GetForUpdate(
	ctx context.Context,
	id uuid.UUID,
) (*deliveryperson.DeliveryPerson, error) {
	sql, args, err := r.sb.
		Select(personColumns...).
		From("delivery_persons").
		Where("id = ?", id).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	dal, err := scanPerson(r.conn.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ideliverypersonrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery person: %w", err)
	}

	person, err := dal.ToModel()
	if err != nil {
		return nil, fmt.Errorf("failed to convert delivery person dal to model: %w", err)
	}

	availabilities, err := r.queryAvailabilities(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	person.Availabilities = availabilities[id]

	return &person, nil
}

// ListAll returns every delivery person. The set is operationally small, so there is no paging.
func (r *DeliveryPersonRepository) ListAll(ctx context.Context) ([]deliveryperson.DeliveryPerson, error) {
	sql, args, err := r.sb.
		Select(personColumns...).
		From("delivery_persons").
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery persons: %w", err)
	}
	defer rows.Close()

	var result []deliveryperson.DeliveryPerson
	var ids []uuid.UUID
	for rows.Next() {
		dal, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery person: %w", err)
		}
		person, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert delivery person dal to model: %w", err)
		}
		result = append(result, person)
		ids = append(ids, person.ID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(ids) == 0 {
		return result, nil
	}

	availabilities, err := r.queryAvailabilities(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Availabilities = availabilities[result[i].ID]
	}

	return result, nil
}

func (r *DeliveryPersonRepository) queryAvailabilities(
	ctx context.Context,
	personIDs []uuid.UUID,
) (map[uuid.UUID][]deliveryperson.Availability, error) {
	sql, args, err := r.sb.
		Select("id", "delivery_person_id", "start_time", "end_time").
		From("delivery_person_availabilities").
		Where("delivery_person_id = ANY(?)", personIDs).
		OrderBy("start_time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query availabilities: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]deliveryperson.Availability, len(personIDs))
	for rows.Next() {
		var a deliveryperson.Availability
		if err := rows.Scan(&a.ID, &a.DeliveryPersonID, &a.StartTime, &a.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		a.StartTime = a.StartTime.UTC()
		a.EndTime = a.EndTime.UTC()
		result[a.DeliveryPersonID] = append(result[a.DeliveryPersonID], a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Reserve flips is_available from true to false. Zero affected rows means
// another transaction reserved the person first.
func (r *DeliveryPersonRepository) Reserve(ctx context.Context, id uuid.UUID) (bool, error) {
	sql, args, err := r.sb.
		Update("delivery_persons").
		Set("is_available", false).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", id).
		Where("is_available = TRUE").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to reserve delivery person: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Release makes the delivery person available again.
func (r *DeliveryPersonRepository) Release(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.sb.
		Update("delivery_persons").
		Set("is_available", true).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to release delivery person: %w", err)
	}

	return nil
}

// InsertAvailability stores one availability window.
func (r *DeliveryPersonRepository) InsertAvailability(ctx context.Context, a deliveryperson.Availability) error {
	sql, args, err := r.sb.
		Insert("delivery_person_availabilities").
		Columns("id", "delivery_person_id", "start_time", "end_time").
		Values(a.ID, a.DeliveryPersonID, a.StartTime, a.EndTime).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert availability: %w", err)
	}

	return nil
}

// HasOverlappingAvailability checks [start, end) against the person's existing windows.
func (r *DeliveryPersonRepository) HasOverlappingAvailability(
	ctx context.Context,
	deliveryPersonID uuid.UUID,
	start, end time.Time,
) (bool, error) {
	sql, args, err := r.sb.
		Select("1").
		From("delivery_person_availabilities").
		Where("delivery_person_id = ?", deliveryPersonID).
		Where("start_time < ?", end).
		Where("end_time > ?", start).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	var exists bool
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query overlapping availability: %w", err)
	}

	return exists, nil
}
