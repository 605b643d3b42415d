package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"snapbooth/internal/session"
	"snapbooth/internal/storage"
	"snapbooth/pkg/interfaces"
	"snapbooth/pkg/types"
)

// Sessions is the API's view of the orchestrator.
type Sessions interface {
	Create(ctx context.Context) (types.Session, error)
	Get(token string) (types.Session, error)
	AttachImage(ctx context.Context, token, imagePath string) (types.Session, error)
	Print(ctx context.Context, token, uploadedPath string) (types.Session, error)
	Count() int
}

// Hub is the API's view of the notification hub, for observability only.
type Hub interface {
	SubscriberCount(token string) int
	Stats() map[string]int
}

// Server is the HTTP surface between kiosk/mobile clients and the session
// core. No business logic lives here, only HTTP handling and JSON
// serialization.
type Server struct {
	sessions       Sessions
	hub            Hub
	images         *storage.ImageStore
	journal        interfaces.EventJournal
	router         *http.ServeMux
	publicBaseURL  string
	maxUploadBytes int64
	startTime      time.Time
}

// NewServer creates the API server. journal may be nil; the events endpoint
// and journal health then report unavailable.
func NewServer(sessions Sessions, hub Hub, images *storage.ImageStore, journal interfaces.EventJournal, publicBaseURL string, maxUploadBytes int64) *Server {
	s := &Server{
		sessions:       sessions,
		hub:            hub,
		images:         images,
		journal:        journal,
		router:         http.NewServeMux(),
		publicBaseURL:  strings.TrimSuffix(publicBaseURL, "/"),
		maxUploadBytes: maxUploadBytes,
		startTime:      time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/sessions", s.handleSessions)
	s.router.HandleFunc("/api/sessions/", s.handleSessionByToken)
	s.router.HandleFunc("/health", s.healthCheck)
	s.router.HandleFunc("/", s.handleRoot)
}

// ServeHTTP implements http.Handler with CORS applied to every route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "86400")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.router.ServeHTTP(w, r)
}

// Request/Response types for JSON serialization
type CreateSessionResponse struct {
	Token     string       `json:"token"`
	Status    types.Status `json:"status"`
	KioskURL  string       `json:"kioskUrl"`
	MobileURL string       `json:"mobileUrl"`
}

type StatusResponse struct {
	Token       string       `json:"token"`
	Status      types.Status `json:"status"`
	Subscribers int          `json:"subscribers"`
}

type UploadResponse struct {
	Message string       `json:"message"`
	Status  types.Status `json:"status"`
}

type PrintResponse struct {
	Message string       `json:"message"`
	Status  types.Status `json:"status"`
}

type EventsResponse struct {
	Token  string         `json:"token"`
	Events []*types.Event `json:"events"`
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Journal   string                 `json:"journal"`
	Sessions  int                    `json:"sessions"`
	Hub       map[string]int         `json:"hub"`
	System    map[string]interface{} `json:"system"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendError(w, "Not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Snapbooth API"})
}

// handleSessions handles the sessions collection (POST /api/sessions).
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createSession(w, r)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionByToken dispatches /api/sessions/{token}/{operation}.
func (s *Server) handleSessionByToken(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		s.sendError(w, "Session token and operation required", http.StatusBadRequest)
		return
	}

	token, operation := parts[0], parts[1]

	switch {
	case operation == "status" && r.Method == http.MethodGet:
		s.getStatus(w, r, token)
	case operation == "image" && r.Method == http.MethodPost:
		s.uploadImage(w, r, token)
	case operation == "image" && r.Method == http.MethodGet:
		s.getImage(w, r, token)
	case operation == "thumbnail" && r.Method == http.MethodGet:
		s.getThumbnail(w, r, token)
	case operation == "print" && r.Method == http.MethodPost:
		s.print(w, r, token)
	case operation == "events" && r.Method == http.MethodGet:
		s.getEvents(w, r, token)
	default:
		s.sendError(w, "Unknown session operation", http.StatusNotFound)
	}
}

// createSession handles POST /api/sessions: a new session in the waiting
// state, plus the URLs the kiosk renders as QR codes.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	created, err := s.sessions.Create(r.Context())
	if err != nil {
		s.sendError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusCreated, CreateSessionResponse{
		Token:     created.Token,
		Status:    created.Status,
		KioskURL:  fmt.Sprintf("%s/kiosk?token=%s", s.publicBaseURL, created.Token),
		MobileURL: fmt.Sprintf("%s/m/session?token=%s", s.publicBaseURL, created.Token),
	})
}

// getStatus handles GET /api/sessions/{token}/status, the source of truth
// clients fall back to when notifications are missed.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request, token string) {
	found, err := s.sessions.Get(token)
	if err != nil {
		s.sendSessionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, StatusResponse{
		Token:       found.Token,
		Status:      found.Status,
		Subscribers: s.hub.SubscriberCount(token),
	})
}

// uploadImage handles POST /api/sessions/{token}/image with a multipart
// image field.
func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request, token string) {
	if _, err := s.sessions.Get(token); err != nil {
		s.sendSessionError(w, err)
		return
	}

	imagePath, ok := s.saveUpload(w, r, true)
	if !ok {
		return
	}

	updated, err := s.sessions.AttachImage(r.Context(), token, imagePath)
	if err != nil {
		_ = s.images.Remove(imagePath)
		s.sendSessionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, UploadResponse{
		Message: "Image uploaded successfully",
		Status:  updated.Status,
	})
}

// getImage handles GET /api/sessions/{token}/image, serving the stored
// photo bytes.
func (s *Server) getImage(w http.ResponseWriter, r *http.Request, token string) {
	found, err := s.sessions.Get(token)
	if err != nil {
		s.sendSessionError(w, err)
		return
	}
	if !found.HasImage() {
		s.sendError(w, "Image not found for this session", http.StatusNotFound)
		return
	}

	resolved, err := s.images.Resolve(found.ImagePath)
	if err != nil {
		s.sendError(w, "Image not found for this session", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, resolved)
}

// getThumbnail handles GET /api/sessions/{token}/thumbnail, a 300px JPEG
// preview for the kiosk display.
func (s *Server) getThumbnail(w http.ResponseWriter, r *http.Request, token string) {
	found, err := s.sessions.Get(token)
	if err != nil {
		s.sendSessionError(w, err)
		return
	}
	if !found.HasImage() {
		s.sendError(w, "Image not found for this session", http.StatusNotFound)
		return
	}

	thumb, err := s.images.Thumbnail(found.ImagePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotAnImage) {
			s.sendError(w, "Stored file is not a decodable image", http.StatusUnprocessableEntity)
			return
		}
		s.sendError(w, "Failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(thumb)
}

// print handles POST /api/sessions/{token}/print. An image may accompany the
// request; otherwise the stored one is used. A missing image on both paths
// is a client error, rejected before any state change.
func (s *Server) print(w http.ResponseWriter, r *http.Request, token string) {
	if _, err := s.sessions.Get(token); err != nil {
		s.sendSessionError(w, err)
		return
	}

	// The accompanying file is optional for print.
	uploadedPath, ok := s.saveUpload(w, r, false)
	if !ok {
		return
	}

	printed, err := s.sessions.Print(r.Context(), token, uploadedPath)
	if err != nil {
		// A file that never got attached to the session is orphaned.
		if uploadedPath != "" && (errors.Is(err, session.ErrSessionNotFound) ||
			errors.Is(err, session.ErrPrintInProgress) || errors.Is(err, session.ErrSessionComplete)) {
			_ = s.images.Remove(uploadedPath)
		}
		s.sendSessionError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, PrintResponse{
		Message: "Print job submitted",
		Status:  printed.Status,
	})
}

// getEvents handles GET /api/sessions/{token}/events from the journal.
func (s *Server) getEvents(w http.ResponseWriter, r *http.Request, token string) {
	if _, err := s.sessions.Get(token); err != nil {
		s.sendSessionError(w, err)
		return
	}
	if s.journal == nil {
		s.sendError(w, "Event journal not available", http.StatusServiceUnavailable)
		return
	}

	events, err := s.journal.SessionEvents(r.Context(), token)
	if err != nil {
		s.sendError(w, "Failed to load session events", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, EventsResponse{Token: token, Events: events})
}

// healthCheck handles GET /health with journal, hub and system stats.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	journalStatus := "healthy"

	if s.journal == nil {
		journalStatus = "disabled"
	} else if err := s.journal.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		journalStatus = fmt.Sprintf("error: %v", err)
	}

	systemInfo := map[string]interface{}{
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		systemInfo["memory_used_percent"] = vm.UsedPercent
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		systemInfo["cpu_percent"] = percents[0]
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Journal:   journalStatus,
		Sessions:  s.sessions.Count(),
		Hub:       s.hub.Stats(),
		System:    systemInfo,
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, response)
}

// saveUpload extracts the multipart image field and stores it. When required
// is false a missing file returns ("", true). On failure a response has
// already been written and false is returned.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request, required bool) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		// A print request may carry no body at all; a non-multipart request
		// and a multipart form without the image field both mean "no file".
		if !required && (errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart)) {
			return "", true
		}
		if required {
			s.sendError(w, "No image file uploaded", http.StatusBadRequest)
		} else {
			s.sendError(w, "Invalid multipart upload", http.StatusBadRequest)
		}
		return "", false
	}
	defer file.Close()

	imagePath, err := s.images.Save(file, header.Filename)
	if err != nil {
		log.Printf("Failed to store upload: %v", err)
		s.sendError(w, "Failed to store uploaded image", http.StatusInternalServerError)
		return "", false
	}

	return imagePath, true
}

// sendSessionError maps orchestrator errors onto the HTTP taxonomy:
// not-found vs precondition failure vs print failure.
func (s *Server) sendSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		s.sendError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, session.ErrNoImage):
		s.sendError(w, "No image to print", http.StatusBadRequest)
	case errors.Is(err, session.ErrPrintInProgress):
		s.sendError(w, "Print already in progress", http.StatusConflict)
	case errors.Is(err, session.ErrSessionComplete):
		s.sendError(w, "Session already completed", http.StatusConflict)
	case errors.Is(err, session.ErrImageLocked):
		s.sendError(w, "Image can no longer be replaced", http.StatusConflict)
	case errors.Is(err, session.ErrPrintFailed):
		s.sendError(w, "Failed to print image", http.StatusInternalServerError)
	default:
		s.sendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
