package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/maintenance-cmms/internal/application"
	"github.com/example/maintenance-cmms/internal/config"
	httptransport "github.com/example/maintenance-cmms/internal/http"
	"github.com/example/maintenance-cmms/internal/persistence"
	"github.com/example/maintenance-cmms/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	workOrders := sqlite.NewWorkOrderRepository(storage)
	timeEntries := sqlite.NewTimeEntryRepository(storage)
	users := sqlite.NewUserRepository(storage)
	equipment := sqlite.NewEquipmentRepository(storage)
	sessions := sqlite.NewSessionRepository(storage)

	workOrderRepo := newWorkOrderRepositoryAdapter(workOrders)
	timeEntryRepo := newTimeEntryRepositoryAdapter(timeEntries)
	userRepo := newUserRepositoryAdapter(users)
	userDirectory := newUserDirectoryAdapter(users)
	equipmentCatalog := newEquipmentCatalogAdapter(equipment)
	sessionRepo := newSessionRepositoryAdapter(sessions)
	credentialStore := newCredentialStoreAdapter(users)

	timerService := application.NewTimerService(timeEntryRepo, workOrderRepo, idGenerator, now, logger)
	workOrderService := application.NewWorkOrderService(workOrderRepo, userDirectory, equipmentCatalog, idGenerator, now, logger)
	lifecycle := application.NewWorkOrderLifecycle(workOrderRepo, timeEntryRepo, logger)
	orchestrator := application.NewOrchestrator(timerService, lifecycle, timeEntryRepo, logger)
	userService := application.NewUserService(userRepo, nil, idGenerator, now)
	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:              httptransport.NewAuthHandler(authService, logger),
		Users:             httptransport.NewUserHandler(userService, logger),
		WorkOrders:        httptransport.NewWorkOrderHandler(workOrderService, lifecycle, orchestrator, logger),
		Timer:             httptransport.NewTimerHandler(timerService, orchestrator, logger),
		Middleware:        []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
		SessionMiddleware: httptransport.RequireSession(authService, logger),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("maintenance API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

type workOrderRepositoryAdapter struct {
	repo persistence.WorkOrderRepository
}

func newWorkOrderRepositoryAdapter(repo persistence.WorkOrderRepository) *workOrderRepositoryAdapter {
	return &workOrderRepositoryAdapter{repo: repo}
}

func (a *workOrderRepositoryAdapter) CreateWorkOrder(ctx context.Context, order application.WorkOrder) (application.WorkOrder, error) {
	stored, err := a.repo.CreateWorkOrder(ctx, toPersistenceWorkOrder(order))
	if err != nil {
		return application.WorkOrder{}, err
	}
	return toApplicationWorkOrder(stored), nil
}

func (a *workOrderRepositoryAdapter) GetWorkOrder(ctx context.Context, id string) (application.WorkOrder, error) {
	stored, err := a.repo.GetWorkOrder(ctx, id)
	if err != nil {
		return application.WorkOrder{}, err
	}
	return toApplicationWorkOrder(stored), nil
}

func (a *workOrderRepositoryAdapter) ListWorkOrders(ctx context.Context, query application.WorkOrderQuery) ([]application.WorkOrder, error) {
	statuses := make([]string, 0, len(query.Statuses))
	for _, status := range query.Statuses {
		statuses = append(statuses, string(status))
	}
	models, err := a.repo.ListWorkOrders(ctx, persistence.WorkOrderFilter{
		Statuses:   statuses,
		AssignedTo: query.AssignedTo,
		CreatedBy:  query.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	orders := make([]application.WorkOrder, 0, len(models))
	for _, model := range models {
		orders = append(orders, toApplicationWorkOrder(model))
	}
	return orders, nil
}

func (a *workOrderRepositoryAdapter) UpdateWorkOrder(ctx context.Context, order application.WorkOrder) (application.WorkOrder, error) {
	stored, err := a.repo.UpdateWorkOrder(ctx, toPersistenceWorkOrder(order))
	if err != nil {
		return application.WorkOrder{}, err
	}
	return toApplicationWorkOrder(stored), nil
}

func (a *workOrderRepositoryAdapter) UpdateStatus(ctx context.Context, id string, from, to application.Status, update application.StatusUpdate) (application.WorkOrder, error) {
	stored, err := a.repo.UpdateStatus(ctx, id, string(from), string(to), persistence.StatusUpdate{
		Notes:      cloneString(update.Notes),
		SetNotes:   update.SetNotes,
		AssignedTo: cloneString(update.AssignedTo),
		SetAssign:  update.SetAssign,
	})
	if err != nil {
		return application.WorkOrder{}, err
	}
	return toApplicationWorkOrder(stored), nil
}

func (a *workOrderRepositoryAdapter) DeleteWorkOrder(ctx context.Context, id string) error {
	return a.repo.DeleteWorkOrder(ctx, id)
}

type timeEntryRepositoryAdapter struct {
	repo persistence.TimeEntryRepository
}

func newTimeEntryRepositoryAdapter(repo persistence.TimeEntryRepository) *timeEntryRepositoryAdapter {
	return &timeEntryRepositoryAdapter{repo: repo}
}

func (a *timeEntryRepositoryAdapter) InsertEntry(ctx context.Context, entry application.TimeEntry) (application.TimeEntry, error) {
	stored, err := a.repo.InsertEntry(ctx, toPersistenceTimeEntry(entry))
	if err != nil {
		return application.TimeEntry{}, err
	}
	return toApplicationTimeEntry(stored), nil
}

func (a *timeEntryRepositoryAdapter) OpenEntries(ctx context.Context, actorID string) ([]application.TimeEntry, error) {
	models, err := a.repo.OpenEntries(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return toApplicationTimeEntries(models), nil
}

func (a *timeEntryRepositoryAdapter) OpenEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]application.TimeEntry, error) {
	models, err := a.repo.OpenEntriesForWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	return toApplicationTimeEntries(models), nil
}

func (a *timeEntryRepositoryAdapter) CloseAndInsert(ctx context.Context, closeID string, endedAt time.Time, next application.TimeEntry) (application.TimeEntry, application.TimeEntry, error) {
	closed, opened, err := a.repo.CloseAndInsert(ctx, closeID, endedAt, toPersistenceTimeEntry(next))
	if err != nil {
		return application.TimeEntry{}, application.TimeEntry{}, err
	}
	return toApplicationTimeEntry(closed), toApplicationTimeEntry(opened), nil
}

func (a *timeEntryRepositoryAdapter) CloseAccumulating(ctx context.Context, closeID string, endedAt time.Time, workOrderID string, seconds int64) (application.TimeEntry, error) {
	closed, err := a.repo.CloseAccumulating(ctx, closeID, endedAt, workOrderID, seconds)
	if err != nil {
		return application.TimeEntry{}, err
	}
	return toApplicationTimeEntry(closed), nil
}

func (a *timeEntryRepositoryAdapter) ListEntriesForWorkOrder(ctx context.Context, workOrderID string) ([]application.TimeEntry, error) {
	models, err := a.repo.ListEntriesForWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	return toApplicationTimeEntries(models), nil
}

func (a *timeEntryRepositoryAdapter) DeleteEntriesForWorkOrder(ctx context.Context, workOrderID string) error {
	return a.repo.DeleteEntriesForWorkOrder(ctx, workOrderID)
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) SetPassword(ctx context.Context, id, passwordHash string) error {
	current, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return err
	}
	current.PasswordHash = passwordHash
	return a.repo.UpdateUser(ctx, current)
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type userDirectoryAdapter struct {
	repo persistence.UserRepository
}

func newUserDirectoryAdapter(repo persistence.UserRepository) *userDirectoryAdapter {
	return &userDirectoryAdapter{repo: repo}
}

func (a *userDirectoryAdapter) UserExists(ctx context.Context, id string) (bool, error) {
	if _, err := a.repo.GetUser(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type equipmentCatalogAdapter struct {
	repo persistence.EquipmentRepository
}

func newEquipmentCatalogAdapter(repo persistence.EquipmentRepository) *equipmentCatalogAdapter {
	return &equipmentCatalogAdapter{repo: repo}
}

func (a *equipmentCatalogAdapter) EquipmentExists(ctx context.Context, id string) (bool, error) {
	return a.repo.EquipmentExists(ctx, id)
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
		Disabled:     stored.Disabled,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		Role:        application.Role(model.Role),
		Disabled:    model.Disabled,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		Role:         string(user.Role),
		Disabled:     user.Disabled,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationWorkOrder(model persistence.WorkOrder) application.WorkOrder {
	return application.WorkOrder{
		ID:               model.ID,
		Sequence:         model.Sequence,
		Title:            model.Title,
		Description:      model.Description,
		EquipmentID:      cloneString(model.EquipmentID),
		Priority:         application.Priority(model.Priority),
		Type:             application.WorkOrderType(model.Type),
		Status:           application.Status(model.Status),
		AssignedTo:       cloneString(model.AssignedTo),
		CreatedBy:        model.CreatedBy,
		DueDate:          cloneTime(model.DueDate),
		TotalTimeSeconds: model.TotalTimeSeconds,
		Notes:            cloneString(model.Notes),
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func toPersistenceWorkOrder(order application.WorkOrder) persistence.WorkOrder {
	return persistence.WorkOrder{
		ID:               order.ID,
		Sequence:         order.Sequence,
		Title:            order.Title,
		Description:      order.Description,
		EquipmentID:      cloneString(order.EquipmentID),
		Priority:         string(order.Priority),
		Type:             string(order.Type),
		Status:           string(order.Status),
		AssignedTo:       cloneString(order.AssignedTo),
		CreatedBy:        order.CreatedBy,
		DueDate:          cloneTime(order.DueDate),
		TotalTimeSeconds: order.TotalTimeSeconds,
		Notes:            cloneString(order.Notes),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

func toApplicationTimeEntry(model persistence.TimeEntry) application.TimeEntry {
	var reason *application.BreakReason
	if model.BreakReason != nil {
		value := application.BreakReason(*model.BreakReason)
		reason = &value
	}
	return application.TimeEntry{
		ID:          model.ID,
		ActorID:     model.ActorID,
		WorkOrderID: model.WorkOrderID,
		Type:        application.EntryType(model.Type),
		BreakReason: reason,
		StartedAt:   model.StartedAt,
		EndedAt:     cloneTime(model.EndedAt),
		Notes:       cloneString(model.Notes),
		CreatedAt:   model.CreatedAt,
	}
}

func toApplicationTimeEntries(models []persistence.TimeEntry) []application.TimeEntry {
	if len(models) == 0 {
		return nil
	}
	entries := make([]application.TimeEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, toApplicationTimeEntry(model))
	}
	return entries
}

func toPersistenceTimeEntry(entry application.TimeEntry) persistence.TimeEntry {
	var reason *string
	if entry.BreakReason != nil {
		value := string(*entry.BreakReason)
		reason = &value
	}
	return persistence.TimeEntry{
		ID:          entry.ID,
		ActorID:     entry.ActorID,
		WorkOrderID: entry.WorkOrderID,
		Type:        string(entry.Type),
		BreakReason: reason,
		StartedAt:   entry.StartedAt,
		EndedAt:     cloneTime(entry.EndedAt),
		Notes:       cloneString(entry.Notes),
		CreatedAt:   entry.CreatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
