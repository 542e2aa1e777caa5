package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/routemate/bus-booking-backend/internal/cache"
	"github.com/routemate/bus-booking-backend/internal/database"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/routemate/bus-booking-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// EnrichmentService produces the joined booking view. Resolving a batch of N
// bookings costs O(distinct referenced entities), not O(N): the distinct
// schedule and company ids are collected across the whole batch, each id is
// fetched at most once (cache first, then one batched read per entity type),
// and the bus/route ids derived from the resolved schedules get the same
// treatment. The final join is pure in-memory map lookups.
type EnrichmentService struct {
	bookingRepo  *database.BookingRepository
	scheduleRepo *database.ScheduleRepository
	busRepo      *database.BusRepository
	routeRepo    *database.RouteRepository
	companyRepo  *database.CompanyRepository
	entityCache  *cache.EntityCache
	retry        utils.RetryConfig
	logger       *logrus.Logger
}

// NewEnrichmentService creates a new EnrichmentService
func NewEnrichmentService(
	bookingRepo *database.BookingRepository,
	scheduleRepo *database.ScheduleRepository,
	busRepo *database.BusRepository,
	routeRepo *database.RouteRepository,
	companyRepo *database.CompanyRepository,
	entityCache *cache.EntityCache,
	logger *logrus.Logger,
) *EnrichmentService {
	return &EnrichmentService{
		bookingRepo:  bookingRepo,
		scheduleRepo: scheduleRepo,
		busRepo:      busRepo,
		routeRepo:    routeRepo,
		companyRepo:  companyRepo,
		entityCache:  entityCache,
		retry:        utils.DefaultRetry,
		logger:       logger,
	}
}

// ListBookings returns the customer's bookings with their schedule, bus,
// route and company resolved
func (s *EnrichmentService) ListBookings(ctx context.Context, customerID string) ([]models.EnhancedBooking, error) {
	bookings, err := s.bookingRepo.GetByCustomerID(customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	return s.EnhanceBookings(ctx, bookings)
}

// EnhanceBookings joins a batch of bookings with their reference entities.
// A booking whose related entities cannot be resolved is excluded from the
// result and logged rather than failing the whole batch.
func (s *EnrichmentService) EnhanceBookings(ctx context.Context, bookings []models.Booking) ([]models.EnhancedBooking, error) {
	if len(bookings) == 0 {
		return []models.EnhancedBooking{}, nil
	}

	scheduleIDs := make(map[string]bool)
	companyIDs := make(map[string]bool)
	for _, b := range bookings {
		scheduleIDs[b.ScheduleID] = true
		companyIDs[b.CompanyID] = true
	}

	// Phase 1: schedules and companies, fetched concurrently
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		schedules = make(map[string]*models.Schedule)
		companies = make(map[string]*models.Company)
		fetchErrs []error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		result, err := s.loadSchedules(ctx, keys(scheduleIDs))
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fetchErrs = append(fetchErrs, err)
			return
		}
		schedules = result
	}()
	go func() {
		defer wg.Done()
		result, err := s.loadCompanies(ctx, keys(companyIDs))
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fetchErrs = append(fetchErrs, err)
			return
		}
		companies = result
	}()
	wg.Wait()

	if len(fetchErrs) > 0 {
		return nil, &TransientError{Op: "booking enrichment", Err: fetchErrs[0]}
	}

	// Phase 2: buses and routes derived from the resolved schedules
	busIDs := make(map[string]bool)
	routeIDs := make(map[string]bool)
	for _, sched := range schedules {
		busIDs[sched.BusID] = true
		routeIDs[sched.RouteID] = true
	}

	var (
		buses  = make(map[string]*models.Bus)
		routes = make(map[string]*models.Route)
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		result, err := s.loadBuses(ctx, keys(busIDs))
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fetchErrs = append(fetchErrs, err)
			return
		}
		buses = result
	}()
	go func() {
		defer wg.Done()
		result, err := s.loadRoutes(ctx, keys(routeIDs))
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			fetchErrs = append(fetchErrs, err)
			return
		}
		routes = result
	}()
	wg.Wait()

	if len(fetchErrs) > 0 {
		return nil, &TransientError{Op: "booking enrichment", Err: fetchErrs[0]}
	}

	// Phase 3: pure in-memory join, zero additional reads
	enhanced := make([]models.EnhancedBooking, 0, len(bookings))
	for _, b := range bookings {
		schedule, ok := schedules[b.ScheduleID]
		if !ok {
			s.logExcluded(b, "schedule", b.ScheduleID)
			continue
		}

		company, ok := companies[b.CompanyID]
		if !ok {
			s.logExcluded(b, "company", b.CompanyID)
			continue
		}

		bus, ok := buses[schedule.BusID]
		if !ok {
			s.logExcluded(b, "bus", schedule.BusID)
			continue
		}

		route, ok := routes[schedule.RouteID]
		if !ok {
			s.logExcluded(b, "route", schedule.RouteID)
			continue
		}

		enhanced = append(enhanced, models.EnhancedBooking{
			Booking:  b,
			Schedule: schedule,
			Bus:      bus,
			Route:    route,
			Company:  company,
		})
	}

	return enhanced, nil
}

func (s *EnrichmentService) loadSchedules(ctx context.Context, ids []string) (map[string]*models.Schedule, error) {
	result := make(map[string]*models.Schedule, len(ids))

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		var schedule models.Schedule
		if s.entityCache.Get(ctx, cache.Key("schedule", id), &schedule) {
			cached := schedule
			result[id] = &cached
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	var fetched []models.Schedule
	err := utils.Retry(ctx, s.retry, func() error {
		var fetchErr error
		fetched, fetchErr = s.scheduleRepo.GetByIDs(missing)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedules: %w", err)
	}

	for i := range fetched {
		schedule := fetched[i]
		result[schedule.ID] = &schedule
		s.entityCache.Set(ctx, cache.Key("schedule", schedule.ID), schedule)
	}

	return result, nil
}

func (s *EnrichmentService) loadCompanies(ctx context.Context, ids []string) (map[string]*models.Company, error) {
	result := make(map[string]*models.Company, len(ids))

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		var company models.Company
		if s.entityCache.Get(ctx, cache.Key("company", id), &company) {
			cached := company
			result[id] = &cached
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	var fetched []models.Company
	err := utils.Retry(ctx, s.retry, func() error {
		var fetchErr error
		fetched, fetchErr = s.companyRepo.GetByIDs(missing)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch companies: %w", err)
	}

	for i := range fetched {
		company := fetched[i]
		result[company.ID] = &company
		s.entityCache.Set(ctx, cache.Key("company", company.ID), company)
	}

	return result, nil
}

func (s *EnrichmentService) loadBuses(ctx context.Context, ids []string) (map[string]*models.Bus, error) {
	result := make(map[string]*models.Bus, len(ids))

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		var bus models.Bus
		if s.entityCache.Get(ctx, cache.Key("bus", id), &bus) {
			cached := bus
			result[id] = &cached
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	var fetched []models.Bus
	err := utils.Retry(ctx, s.retry, func() error {
		var fetchErr error
		fetched, fetchErr = s.busRepo.GetByIDs(missing)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch buses: %w", err)
	}

	for i := range fetched {
		bus := fetched[i]
		result[bus.ID] = &bus
		s.entityCache.Set(ctx, cache.Key("bus", bus.ID), bus)
	}

	return result, nil
}

func (s *EnrichmentService) loadRoutes(ctx context.Context, ids []string) (map[string]*models.Route, error) {
	result := make(map[string]*models.Route, len(ids))

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		var route models.Route
		if s.entityCache.Get(ctx, cache.Key("route", id), &route) {
			cached := route
			result[id] = &cached
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result, nil
	}

	var fetched []models.Route
	err := utils.Retry(ctx, s.retry, func() error {
		var fetchErr error
		fetched, fetchErr = s.routeRepo.GetByIDs(missing)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch routes: %w", err)
	}

	for i := range fetched {
		route := fetched[i]
		result[route.ID] = &route
		s.entityCache.Set(ctx, cache.Key("route", route.ID), route)
	}

	return result, nil
}

func (s *EnrichmentService) logExcluded(b models.Booking, entity, id string) {
	s.logger.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"entity":     entity,
		"entity_id":  id,
	}).Warn("Booking excluded from list: related entity unresolved")
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
