package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"greetbox/api/internal/auth"
	"greetbox/api/internal/config"
	"greetbox/api/internal/export"
	"greetbox/api/internal/gate"
	"greetbox/api/internal/media"
	"greetbox/api/internal/richtext"
	"greetbox/api/internal/search"
	"greetbox/api/internal/store"
	"greetbox/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	JTI       string
	ExpiresAt time.Time
}

type CreateGreetingInput struct {
	Title             string `json:"title"`
	Markup            string `json:"markup"`
	AccessType        string `json:"accessType"`
	NotificationEmail string `json:"notificationEmail"`
}

type UpdateGreetingInput struct {
	Title             string `json:"title"`
	Markup            string `json:"markup"`
	AccessType        string `json:"accessType"`
	NotificationEmail string `json:"notificationEmail"`
}

type dataStore interface {
	Ping(ctx context.Context) error
	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	InsertGreeting(context.Context, store.Greeting) error
	UpdateGreeting(context.Context, store.Greeting) error
	DeleteGreeting(ctx context.Context, id, authorID string) error
	GetGreeting(context.Context, string) (store.Greeting, error)
	GetGreetingPolicy(context.Context, string) (store.GreetingPolicy, error)
	GetGreetingByCode(ctx context.Context, id, code string) (store.Greeting, error)
	ListGreetingsByAuthor(context.Context, string) ([]store.Greeting, error)
	InsertMediaRef(context.Context, store.MediaRef) error
	ClaimMediaRefs(ctx context.Context, greetingID, authorID string, urls []string) error
	ListMediaRefsByGreeting(context.Context, string) ([]store.MediaRef, error)
	DeleteMediaRef(context.Context, string) error
}

type grantStore interface {
	SaveViewGrant(ctx context.Context, token, greetingID string, expiresAt time.Time) error
	LookupViewGrant(ctx context.Context, token string) (string, error)
	RevokeViewGrant(ctx context.Context, token string) error
}

type mediaStore interface {
	Upload(ctx context.Context, kind, filename, contentType string, r io.Reader, size int64) (media.Object, error)
	Remove(ctx context.Context, kind, objectPath string) error
}

type mailer interface {
	IsConfigured() bool
	SendAccessCode(to, title, code, link string) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexGreeting(g search.GreetingRecord)
	DeleteGreeting(id string)
}

// viewSessionRecord tracks one viewer's gate. Sessions are pruned
// lazily on access once they pass their TTL.
type viewSessionRecord struct {
	gate       *gate.Gate
	greetingID string
	grantToken string
	expiresAt  time.Time
}

type Service struct {
	cfg      config.Config
	store    dataStore
	grants   grantStore
	media    mediaStore
	mail     mailer
	search   searchIndex
	exporter *export.Service

	viewSessionTTL time.Duration
	viewMu         sync.Mutex
	viewSessions   map[string]*viewSessionRecord
}

// New wires the service. media may be nil when blob storage is not
// configured; mail may be nil when SMTP is not configured.
func New(cfg config.Config, dataStore dataStore, grants grantStore, mediaStore mediaStore, mail mailer, searchSvc searchIndex) *Service {
	return &Service{
		cfg:            cfg,
		store:          dataStore,
		grants:         grants,
		media:          mediaStore,
		mail:           mail,
		search:         searchSvc,
		exporter:       export.NewService(),
		viewSessionTTL: 15 * time.Minute,
		viewSessions:   make(map[string]*viewSessionRecord),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Sessions

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.SessionTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Greetings

func (s *Service) CreateGreeting(ctx context.Context, authorID string, input CreateGreetingInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	doc, content, err := normalizeContent(input.Markup)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	accessType := input.AccessType
	if accessType == "" {
		accessType = store.AccessPublic
	}
	if accessType != store.AccessPublic && accessType != store.AccessPrivate {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "accessType must be public or private", nil)
	}

	g := store.Greeting{
		ID:         util.NewEntityID(),
		Title:      title,
		Markup:     content.Markup,
		Text:       content.Text,
		AuthorID:   authorID,
		AccessType: accessType,
	}

	if accessType == store.AccessPrivate {
		email := strings.TrimSpace(input.NotificationEmail)
		if email == "" {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "notificationEmail is required for private greetings", nil)
		}
		code, err := gate.GenerateCode()
		if err != nil {
			return nil, err
		}
		g.AccessCode = code
		g.NotificationEmail = email
	}

	if err := s.store.InsertGreeting(ctx, g); err != nil {
		return nil, err
	}

	if err := s.store.ClaimMediaRefs(ctx, g.ID, authorID, mediaURLs(doc)); err != nil {
		log.Printf("app: claim media refs for greeting %s: %v", g.ID, err)
	}

	s.indexGreeting(g)

	notified := false
	if g.AccessType == store.AccessPrivate {
		notified = s.deliverAccessCode(g)
	}

	payload := ownerGreetingPayload(g)
	payload["notificationSent"] = notified
	return payload, nil
}

func (s *Service) UpdateGreeting(ctx context.Context, id, authorID string, input UpdateGreetingInput) (map[string]any, error) {
	existing, err := s.store.GetGreeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.AuthorID != authorID {
		return nil, sql.ErrNoRows
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	doc, content, err := normalizeContent(input.Markup)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}

	accessType := input.AccessType
	if accessType == "" {
		accessType = existing.AccessType
	}
	if accessType != store.AccessPublic && accessType != store.AccessPrivate {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "accessType must be public or private", nil)
	}

	updated := existing
	updated.Title = title
	updated.Markup = content.Markup
	updated.Text = content.Text
	updated.AccessType = accessType

	// A fresh code is generated only when the greeting first turns
	// private. An already-private greeting keeps its code.
	becamePrivate := accessType == store.AccessPrivate && existing.AccessType != store.AccessPrivate
	if accessType == store.AccessPrivate {
		email := strings.TrimSpace(input.NotificationEmail)
		if email == "" {
			email = existing.NotificationEmail
		}
		if email == "" {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "notificationEmail is required for private greetings", nil)
		}
		updated.NotificationEmail = email
		if becamePrivate {
			code, err := gate.GenerateCode()
			if err != nil {
				return nil, err
			}
			updated.AccessCode = code
		}
	} else {
		updated.AccessCode = ""
		updated.NotificationEmail = ""
	}

	if err := s.store.UpdateGreeting(ctx, updated); err != nil {
		return nil, err
	}

	if err := s.store.ClaimMediaRefs(ctx, updated.ID, authorID, mediaURLs(doc)); err != nil {
		log.Printf("app: claim media refs for greeting %s: %v", updated.ID, err)
	}

	s.indexGreeting(updated)

	notified := false
	if becamePrivate {
		notified = s.deliverAccessCode(updated)
	}

	payload := ownerGreetingPayload(updated)
	payload["notificationSent"] = notified
	return payload, nil
}

func (s *Service) GetOwnGreeting(ctx context.Context, id, authorID string) (map[string]any, error) {
	g, err := s.store.GetGreeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.AuthorID != authorID {
		return nil, sql.ErrNoRows
	}
	return ownerGreetingPayload(g), nil
}

func (s *Service) ListGreetings(ctx context.Context, authorID string) ([]map[string]any, error) {
	greetings, err := s.store.ListGreetingsByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(greetings))
	for _, g := range greetings {
		items = append(items, map[string]any{
			"id":         g.ID,
			"title":      g.Title,
			"accessType": g.AccessType,
			"createdAt":  g.CreatedAt,
			"updatedAt":  g.UpdatedAt,
		})
	}
	return items, nil
}

// DeleteGreeting removes the record first, then cleans up the blobs it
// owned. Blob removal is best effort; a failed removal never resurrects
// the greeting.
func (s *Service) DeleteGreeting(ctx context.Context, id, authorID string) error {
	refs, err := s.store.ListMediaRefsByGreeting(ctx, id)
	if err != nil {
		log.Printf("app: list media refs for greeting %s: %v", id, err)
	}

	if err := s.store.DeleteGreeting(ctx, id, authorID); err != nil {
		return err
	}

	for _, ref := range refs {
		if s.media != nil {
			if err := s.media.Remove(ctx, ref.Kind, ref.ObjectPath); err != nil {
				log.Printf("app: remove %s blob %s: %v", ref.Kind, ref.ObjectPath, err)
			}
		}
		if err := s.store.DeleteMediaRef(ctx, ref.ID); err != nil {
			log.Printf("app: delete media ref %s: %v", ref.ID, err)
		}
	}

	if s.search != nil {
		s.search.DeleteGreeting(id)
	}
	return nil
}

func (s *Service) SearchGreetings(ctx context.Context, authorID, q string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return map[string]any{"results": []any{}, "total": 0, "query": q}, nil
	}
	resp := s.search.Search(search.Query{Text: q, AuthorID: authorID, Limit: limit, Offset: offset})
	return map[string]any{
		"results": resp.Results,
		"total":   resp.Total,
		"query":   resp.Query,
	}, nil
}

// Media

func (s *Service) UploadMedia(ctx context.Context, authorID, kind, filename, contentType string, r io.Reader, size int64) (map[string]any, error) {
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_DISABLED", "Media storage is not configured", nil)
	}
	if kind != media.KindImage && kind != media.KindVideo {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind must be image or video", nil)
	}

	obj, err := s.media.Upload(ctx, kind, filename, contentType, r, size)
	if err != nil {
		return nil, domainError(http.StatusBadGateway, "UPLOAD_FAILED", "Upload failed", nil)
	}

	ref := store.MediaRef{
		ID:         util.NewEntityID(),
		AuthorID:   authorID,
		Kind:       obj.Kind,
		ObjectPath: obj.ObjectPath,
		URL:        obj.URL,
	}
	if err := s.store.InsertMediaRef(ctx, ref); err != nil {
		return nil, err
	}

	return map[string]any{
		"url":         obj.URL,
		"kind":        obj.Kind,
		"contentType": contentType,
	}, nil
}

// Viewing

// LoadView resolves the access gate for a greeting. An empty viewID
// starts a fresh session; passing one back continues it.
func (s *Service) LoadView(ctx context.Context, greetingID, viewID string) (map[string]any, error) {
	record, viewID := s.viewSession(greetingID, viewID)

	if _, err := record.gate.Load(ctx); err != nil {
		return nil, err
	}
	return s.viewPayload(ctx, viewID, record)
}

// SubmitCode verifies an access code for an in-progress view session.
func (s *Service) SubmitCode(ctx context.Context, greetingID, viewID, code string) (map[string]any, error) {
	s.viewMu.Lock()
	record, ok := s.viewSessions[viewID]
	s.viewMu.Unlock()
	if !ok || record.greetingID != greetingID {
		return nil, domainError(http.StatusNotFound, "VIEW_SESSION_NOT_FOUND", "View session not found or expired", nil)
	}

	if _, err := record.gate.Submit(ctx, code); err != nil {
		return nil, err
	}
	return s.viewPayload(ctx, viewID, record)
}

// ResumeView serves a greeting directly from a previously issued grant
// token, skipping the gate.
func (s *Service) ResumeView(ctx context.Context, grantToken string) (map[string]any, error) {
	greetingID, err := s.grants.LookupViewGrant(ctx, grantToken)
	if err != nil {
		return nil, domainError(http.StatusUnauthorized, "GRANT_INVALID", "Grant token invalid or expired", nil)
	}
	g, err := s.store.GetGreeting(ctx, greetingID)
	if err != nil {
		return nil, err
	}
	payload, err := viewerGreetingPayload(g)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"state":    string(gate.StateGranted),
		"greeting": payload,
	}, nil
}

func (s *Service) viewSession(greetingID, viewID string) (*viewSessionRecord, string) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()

	now := time.Now()
	for id, record := range s.viewSessions {
		if now.After(record.expiresAt) {
			delete(s.viewSessions, id)
		}
	}

	if viewID != "" {
		if record, ok := s.viewSessions[viewID]; ok && record.greetingID == greetingID {
			record.expiresAt = now.Add(s.viewSessionTTL)
			return record, viewID
		}
	}

	viewID = util.NewToken()
	record := &viewSessionRecord{
		gate:       gate.New(s.store, greetingID, 5*time.Second),
		greetingID: greetingID,
		expiresAt:  now.Add(s.viewSessionTTL),
	}
	s.viewSessions[viewID] = record
	return record, viewID
}

func (s *Service) viewPayload(ctx context.Context, viewID string, record *viewSessionRecord) (map[string]any, error) {
	state := record.gate.State()
	payload := map[string]any{
		"viewSession": viewID,
		"state":       string(state),
	}
	if msg := record.gate.Message(); msg != "" {
		payload["message"] = msg
	}

	if g, ok := record.gate.Record(); ok {
		viewer, err := viewerGreetingPayload(g)
		if err != nil {
			return nil, err
		}
		payload["greeting"] = viewer

		if record.grantToken == "" {
			token := util.NewToken()
			if err := s.grants.SaveViewGrant(ctx, token, g.ID, time.Now().Add(s.cfg.GrantTTL)); err != nil {
				log.Printf("app: save view grant for greeting %s: %v", g.ID, err)
			} else {
				record.grantToken = token
			}
		}
		if record.grantToken != "" {
			payload["grantToken"] = record.grantToken
		}
	}
	return payload, nil
}

// Export

func (s *Service) ExportGreetingPDF(ctx context.Context, id, authorID string) (*export.Result, error) {
	g, err := s.store.GetGreeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.AuthorID != authorID {
		return nil, sql.ErrNoRows
	}
	return s.exporter.ExportPDF(export.GreetingInfo{
		Title:      g.Title,
		AuthorName: g.AuthorName,
		Markup:     g.Markup,
		CreatedAt:  g.CreatedAt,
	})
}

// Helpers

// normalizeContent parses submitted markup and re-serializes it so the
// stored markup and text projection always come from the same tree.
// Empty markup yields the empty document.
func normalizeContent(markup string) (*richtext.Doc, richtext.Content, error) {
	if strings.TrimSpace(markup) == "" {
		doc := richtext.NewDoc()
		content, err := richtext.Serialize(doc)
		return doc, content, err
	}
	doc, err := richtext.Deserialize(markup)
	if err != nil {
		return nil, richtext.Content{}, fmt.Errorf("invalid markup: %w", err)
	}
	content, err := richtext.Serialize(doc)
	if err != nil {
		return nil, richtext.Content{}, err
	}
	return doc, content, nil
}

func mediaURLs(doc *richtext.Doc) []string {
	nodes := doc.MediaNodes()
	urls := make([]string, 0, len(nodes))
	for _, n := range nodes {
		urls = append(urls, n.Src)
	}
	return urls
}

func (s *Service) indexGreeting(g store.Greeting) {
	if s.search == nil {
		return
	}
	s.search.IndexGreeting(search.GreetingRecord{
		ID:       g.ID,
		AuthorID: g.AuthorID,
		Title:    g.Title,
		Text:     g.Text,
	})
}

// deliverAccessCode sends the code for a freshly privatized greeting.
// It is called exactly once per generated code. When SMTP is not
// configured the code is logged instead so local development still
// works.
func (s *Service) deliverAccessCode(g store.Greeting) bool {
	link := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/view/" + g.ID
	if s.mail == nil || !s.mail.IsConfigured() {
		log.Printf("app: email disabled, access code for greeting %s: %s", g.ID, g.AccessCode)
		return false
	}
	if err := s.mail.SendAccessCode(g.NotificationEmail, g.Title, g.AccessCode, link); err != nil {
		log.Printf("app: send access code for greeting %s: %v", g.ID, err)
		return false
	}
	return true
}

func ownerGreetingPayload(g store.Greeting) map[string]any {
	return map[string]any{
		"id":                g.ID,
		"title":             g.Title,
		"markup":            g.Markup,
		"text":              g.Text,
		"accessType":        g.AccessType,
		"accessCode":        g.AccessCode,
		"notificationEmail": g.NotificationEmail,
		"createdAt":         g.CreatedAt,
		"updatedAt":         g.UpdatedAt,
	}
}

// viewerGreetingPayload is the shape served once a gate is Granted. It
// carries rendered HTML and never the access code.
func viewerGreetingPayload(g store.Greeting) (map[string]any, error) {
	html, err := richtext.RenderHTML(g.Markup)
	if err != nil {
		return nil, fmt.Errorf("render greeting %s: %w", g.ID, err)
	}
	author := g.AuthorName
	if author == "" {
		author = "Anonymous"
	}
	return map[string]any{
		"id":         g.ID,
		"title":      g.Title,
		"markup":     g.Markup,
		"html":       html,
		"authorName": author,
		"createdAt":  g.CreatedAt,
	}, nil
}
