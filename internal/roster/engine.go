package roster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pelotonhq/peloton-backend/internal/rides"
	"github.com/pelotonhq/peloton-backend/pkg/config"
	"github.com/pelotonhq/peloton-backend/pkg/enums"
	pkgerrors "github.com/pelotonhq/peloton-backend/pkg/errors"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
)

// rideBackend is the slice of the rides service the engine mutates through.
type rideBackend interface {
	Create(ctx context.Context, userID uuid.UUID, dto rides.CreateRideDTO) (*rides.RideResponse, error)
	Delete(ctx context.Context, userID, rideID uuid.UUID) error
}

// participantBackend is the slice of the participants service the engine
// mutates through.
type participantBackend interface {
	Join(ctx context.Context, userID, rideID uuid.UUID) error
	Leave(ctx context.Context, userID, rideID uuid.UUID) error
	SetStatus(ctx context.Context, userID, rideID uuid.UUID, status string) error
}

// Engine keeps an in-memory projection of every ride and its roster. Writes
// go through the backing services with an optimistic local update that is
// rolled back when the write fails; reads serve from the projection. Change
// feed events trigger a debounced wholesale refetch, never row patching.
type Engine struct {
	store   Store
	rides   rideBackend
	members participantBackend
	feed    Feed
	logg    *logger.Logger
	cfg     config.RosterConfig

	mu           sync.RWMutex
	rideList     []Ride
	participants map[uuid.UUID][]Participant
	loaded       bool
	syncedAt     time.Time
}

// EngineParams bundles the engine dependencies.
type EngineParams struct {
	Store        Store
	RideService  rideBackend
	Participants participantBackend
	Feed         Feed
	Logger       *logger.Logger
	Config       config.RosterConfig
}

// NewEngine wires the roster sync engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "store required")
	}
	if params.RideService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ride service required")
	}
	if params.Participants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "participants service required")
	}
	if params.Feed == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "feed required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Engine{
		store:        params.Store,
		rides:        params.RideService,
		members:      params.Participants,
		feed:         params.Feed,
		logg:         params.Logger,
		cfg:          params.Config,
		participants: make(map[uuid.UUID][]Participant),
	}, nil
}

// LoadAll refetches the complete datasets and replaces the projection
// wholesale. On failure the previous state is kept untouched.
func (e *Engine) LoadAll(ctx context.Context) error {
	timeout := e.cfg.LoadTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		wg         sync.WaitGroup
		rideRows   []Ride
		rosterRows []Participant
		rideErr    error
		rosterErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		rideRows, rideErr = e.store.FetchRides(ctx)
	}()
	go func() {
		defer wg.Done()
		rosterRows, rosterErr = e.store.FetchParticipants(ctx)
	}()
	wg.Wait()

	if rideErr != nil {
		return rideErr
	}
	if rosterErr != nil {
		return rosterErr
	}

	grouped := make(map[uuid.UUID][]Participant, len(rideRows))
	for _, p := range rosterRows {
		grouped[p.RideID] = append(grouped[p.RideID], p)
	}

	e.mu.Lock()
	e.rideList = rideRows
	sortRides(e.rideList)
	e.participants = grouped
	e.loaded = true
	e.syncedAt = time.Now().UTC()
	e.mu.Unlock()

	return nil
}

// Snapshot returns a deep copy of the current projection.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ridesCopy := make([]Ride, len(e.rideList))
	copy(ridesCopy, e.rideList)

	participantsCopy := make(map[uuid.UUID][]Participant, len(e.participants))
	for rideID, roster := range e.participants {
		rosterCopy := make([]Participant, len(roster))
		copy(rosterCopy, roster)
		participantsCopy[rideID] = rosterCopy
	}

	return Snapshot{
		Rides:        ridesCopy,
		Participants: participantsCopy,
		SyncedAt:     e.syncedAt,
	}
}

// Loaded reports whether an initial LoadAll has succeeded.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded
}

// IsParticipant reports whether the user holds a roster row for the ride,
// regardless of status.
func (e *Engine) IsParticipant(userID, rideID uuid.UUID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.participants[rideID] {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// CreateRide inserts a provisional ride locally, then persists it. The
// provisional row is removed when the write fails, and swapped for the
// server's version when it succeeds.
func (e *Engine) CreateRide(ctx context.Context, userID uuid.UUID, dto rides.CreateRideDTO) (uuid.UUID, error) {
	provisional := provisionalRide(userID, dto)

	e.mu.Lock()
	e.rideList = append(e.rideList, provisional)
	sortRides(e.rideList)
	e.participants[provisional.ID] = []Participant{{
		RideID:   provisional.ID,
		UserID:   userID,
		Status:   enums.ParticipantStatusAccepted,
		JoinedAt: provisional.CreatedAt,
	}}
	e.mu.Unlock()

	created, err := e.rides.Create(ctx, userID, dto)
	if err != nil {
		e.mu.Lock()
		e.removeRideLocked(provisional.ID)
		e.mu.Unlock()
		return uuid.Nil, err
	}

	e.mu.Lock()
	e.removeRideLocked(provisional.ID)
	e.insertRideResponseLocked(created)
	e.mu.Unlock()

	return created.ID, nil
}

// DeleteRide removes the ride and its roster locally, then persists the
// delete. On failure the removed rows are restored.
func (e *Engine) DeleteRide(ctx context.Context, userID, rideID uuid.UUID) error {
	e.mu.Lock()
	removedRide, removedRoster, found := e.stashRideLocked(rideID)
	if found {
		e.removeRideLocked(rideID)
	}
	e.mu.Unlock()

	if err := e.rides.Delete(ctx, userID, rideID); err != nil {
		if found {
			e.mu.Lock()
			e.upsertRideLocked(removedRide)
			e.participants[rideID] = removedRoster
			e.mu.Unlock()
		}
		return err
	}
	return nil
}

// Join adds a pending roster row locally, then persists it. The previous row
// state is restored when the write fails.
func (e *Engine) Join(ctx context.Context, userID, rideID uuid.UUID) error {
	e.mu.Lock()
	previous, existed := e.stashParticipantLocked(rideID, userID)
	e.upsertParticipantLocked(Participant{
		RideID:   rideID,
		UserID:   userID,
		Status:   enums.ParticipantStatusPending,
		JoinedAt: time.Now().UTC(),
	})
	e.mu.Unlock()

	if err := e.members.Join(ctx, userID, rideID); err != nil {
		e.restoreParticipant(rideID, userID, previous, existed)
		return err
	}
	return nil
}

// Leave removes the roster row locally, then persists it. The row is
// restored when the write fails.
func (e *Engine) Leave(ctx context.Context, userID, rideID uuid.UUID) error {
	e.mu.Lock()
	previous, existed := e.stashParticipantLocked(rideID, userID)
	if existed {
		e.removeParticipantLocked(rideID, userID)
	}
	e.mu.Unlock()

	if err := e.members.Leave(ctx, userID, rideID); err != nil {
		e.restoreParticipant(rideID, userID, previous, existed)
		return err
	}
	return nil
}

// SetStatus updates the user's own status locally, then persists it. The
// previous status is restored when the write fails.
func (e *Engine) SetStatus(ctx context.Context, userID, rideID uuid.UUID, status enums.ParticipantStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid participant status")
	}

	e.mu.Lock()
	previous, existed := e.stashParticipantLocked(rideID, userID)
	e.upsertParticipantLocked(Participant{
		RideID:   rideID,
		UserID:   userID,
		Status:   status,
		JoinedAt: time.Now().UTC(),
	})
	e.mu.Unlock()

	if err := e.members.SetStatus(ctx, userID, rideID, status.String()); err != nil {
		e.restoreParticipant(rideID, userID, previous, existed)
		return err
	}
	return nil
}

// Run consumes feed events until the context is canceled. Events are
// debounced so bursts collapse into a single wholesale refetch.
func (e *Engine) Run(ctx context.Context) error {
	debounce := e.cfg.DebounceWindow
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			e.logg.Info(ctx, "roster engine context canceled")
			return ctx.Err()
		case event, ok := <-e.feed.Events():
			if !ok {
				return nil
			}
			e.drainUntilQuiet(ctx, debounce)
			logCtx := e.logg.WithField(ctx, "event_type", event.Type.String())
			if err := e.LoadAll(ctx); err != nil {
				e.logg.Error(logCtx, "roster refetch failed, keeping last known state", err)
				continue
			}
			e.logg.Info(logCtx, "roster refetched")
		}
	}
}

func (e *Engine) drainUntilQuiet(ctx context.Context, window time.Duration) {
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-e.feed.Events():
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(window)
		}
	}
}

func (e *Engine) restoreParticipant(rideID, userID uuid.UUID, previous Participant, existed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if existed {
		e.upsertParticipantLocked(previous)
		return
	}
	e.removeParticipantLocked(rideID, userID)
}

func (e *Engine) stashRideLocked(rideID uuid.UUID) (Ride, []Participant, bool) {
	for _, ride := range e.rideList {
		if ride.ID == rideID {
			roster := make([]Participant, len(e.participants[rideID]))
			copy(roster, e.participants[rideID])
			return ride, roster, true
		}
	}
	return Ride{}, nil, false
}

// upsertRideLocked replaces the row carrying the ride's id or appends a new
// one. A concurrent refetch may land the ride before a local patch runs, so
// patches can never blindly append.
func (e *Engine) upsertRideLocked(ride Ride) {
	for i := range e.rideList {
		if e.rideList[i].ID == ride.ID {
			e.rideList[i] = ride
			sortRides(e.rideList)
			return
		}
	}
	e.rideList = append(e.rideList, ride)
	sortRides(e.rideList)
}

func (e *Engine) removeRideLocked(rideID uuid.UUID) {
	filtered := e.rideList[:0]
	for _, ride := range e.rideList {
		if ride.ID != rideID {
			filtered = append(filtered, ride)
		}
	}
	e.rideList = filtered
	delete(e.participants, rideID)
}

func (e *Engine) insertRideResponseLocked(created *rides.RideResponse) {
	ride := Ride{
		ID:            created.ID,
		Title:         created.Title,
		StartLocation: created.StartLocation,
		RideTime:      created.RideTime,
		DistanceKM:    created.DistanceKM,
		Pace:          created.Pace,
		BikeType:      created.BikeType,
		Description:   created.Description,
		Latitude:      created.Latitude,
		Longitude:     created.Longitude,
		RadiusKM:      created.RadiusKM,
		GroupID:       created.GroupID,
		CreatedBy:     created.CreatedBy,
		CreatedAt:     created.CreatedAt,
	}
	e.upsertRideLocked(ride)

	roster := make([]Participant, 0, len(created.Participants))
	for _, p := range created.Participants {
		roster = append(roster, Participant{
			RideID:   created.ID,
			UserID:   p.UserID,
			Status:   p.Status,
			JoinedAt: p.JoinedAt,
		})
	}
	e.participants[created.ID] = roster
}

func (e *Engine) stashParticipantLocked(rideID, userID uuid.UUID) (Participant, bool) {
	for _, p := range e.participants[rideID] {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (e *Engine) upsertParticipantLocked(row Participant) {
	roster := e.participants[row.RideID]
	for i := range roster {
		if roster[i].UserID == row.UserID {
			roster[i].Status = row.Status
			return
		}
	}
	e.participants[row.RideID] = append(roster, row)
}

func (e *Engine) removeParticipantLocked(rideID, userID uuid.UUID) {
	roster := e.participants[rideID]
	filtered := roster[:0]
	for _, p := range roster {
		if p.UserID != userID {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		delete(e.participants, rideID)
		return
	}
	e.participants[rideID] = filtered
}

func provisionalRide(userID uuid.UUID, dto rides.CreateRideDTO) Ride {
	pace, _ := enums.ParsePace(dto.Pace)
	bikeType, _ := enums.ParseBikeType(dto.BikeType)
	now := time.Now().UTC()
	return Ride{
		ID:            uuid.New(),
		Title:         dto.Title,
		StartLocation: dto.StartLocation,
		RideTime:      dto.RideTime.UTC(),
		DistanceKM:    dto.DistanceKM,
		Pace:          pace,
		BikeType:      bikeType,
		Description:   dto.Description,
		Latitude:      dto.Latitude,
		Longitude:     dto.Longitude,
		RadiusKM:      dto.RadiusKM,
		GroupID:       dto.GroupID,
		CreatedBy:     userID,
		CreatedAt:     now,
	}
}

func sortRides(rows []Ride) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].RideTime.Equal(rows[j].RideTime) {
			return rows[i].ID.String() < rows[j].ID.String()
		}
		return rows[i].RideTime.Before(rows[j].RideTime)
	})
}
