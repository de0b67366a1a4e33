package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/config"
	"github.com/ignite/newsletter-engine/internal/domain"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/personalization"
	"github.com/ignite/newsletter-engine/internal/pkg/distlock"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/tracking"
)

// SendRequest describes one send cycle.
type SendRequest struct {
	CampaignName string              `json:"campaign_name"`
	Subject      string              `json:"subject_line,omitempty"`
	SegmentID    string              `json:"segment_id,omitempty"`
	ExperimentID string              `json:"experiment_id,omitempty"`
	Subscribers  []domain.Subscriber `json:"subscribers"`
	Repositories []domain.Repository `json:"repositories"`
}

// FailedSend is a recipient the cycle could not deliver to.
type FailedSend struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// SendResult tallies a send cycle.
type SendResult struct {
	CampaignID            string             `json:"campaign_id"`
	Successful            []string           `json:"successful_sends"`
	Failed                []FailedSend       `json:"failed_sends"`
	PersonalizationScores map[string]float64 `json:"personalization_scores"`
	TotalRepositories     int                `json:"total_repositories"`
}

// TotalAttempted is the number of recipients processed.
func (r SendResult) TotalAttempted() int {
	return len(r.Successful) + len(r.Failed)
}

// SuccessRate is successful sends over attempts, 0 when nothing was attempted.
func (r SendResult) SuccessRate() float64 {
	total := r.TotalAttempted()
	if total == 0 {
		return 0
	}
	return float64(len(r.Successful)) / float64(total)
}

// AvgPersonalizationScore averages the scores of delivered messages.
func (r SendResult) AvgPersonalizationScore() float64 {
	if len(r.PersonalizationScores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range r.PersonalizationScores {
		sum += s
	}
	return sum / float64(len(r.PersonalizationScores))
}

// Sender runs personalized send cycles against an Engine.
type Sender struct {
	engine    *Engine
	transport Transport
	locker    distlock.Locker
	renderer  *Renderer
	signer    *tracking.Signer
	cfg       config.SendConfig
	log       *logger.Logger
}

// NewSender creates a sender. signer may be nil, in which case links are
// not wrapped for tracking and no unsubscribe link is rendered.
func NewSender(engine *Engine, transport Transport, locker distlock.Locker, signer *tracking.Signer, cfg config.SendConfig) *Sender {
	return &Sender{
		engine:    engine,
		transport: transport,
		locker:    locker,
		renderer:  NewRenderer(),
		signer:    signer,
		cfg:       cfg,
		log:       logger.With("component", "sender"),
	}
}

// Send runs one cycle while holding the send lock. Failures for a single
// recipient are recorded in the result and never stop the cycle.
func (s *Sender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if len(req.Subscribers) == 0 {
		return SendResult{}, ErrNoSubscribers
	}
	if len(req.Repositories) == 0 {
		return SendResult{}, personalization.ErrNoRepositories
	}

	var result SendResult
	err := distlock.Guard(ctx, s.locker, func(ctx context.Context) error {
		var err error
		result, err = s.run(ctx, req)
		return err
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		return SendResult{}, ErrCycleInProgress
	}
	return result, err
}

func (s *Sender) run(ctx context.Context, req SendRequest) (SendResult, error) {
	start := time.Now()

	subject := req.Subject
	if subject == "" {
		subject = s.cfg.DefaultSubject
	}
	var criteria map[string]any
	if req.SegmentID != "" {
		criteria = map[string]any{domain.SegmentIDKey: req.SegmentID}
	}
	campaignID := s.engine.Analytics.CreateCampaign(req.CampaignName, subject, s.defaultTemplate().Version, criteria)

	result := SendResult{
		CampaignID:            campaignID,
		Successful:            []string{},
		Failed:                []FailedSend{},
		PersonalizationScores: map[string]float64{},
		TotalRepositories:     len(req.Repositories),
	}
	log := s.log.With("campaign_id", campaignID)
	log.Info("send cycle started", "recipients", len(req.Subscribers), "experiment_id", req.ExperimentID)

	for _, sub := range req.Subscribers {
		if err := ctx.Err(); err != nil {
			log.Warn("send cycle cancelled", "processed", result.TotalAttempted())
			break
		}

		score, err := s.sendOne(ctx, campaignID, subject, req, sub)
		if err != nil {
			log.Warn("send failed", "email", sub.Email, "error", err)
			result.Failed = append(result.Failed, FailedSend{Email: sub.Email, Error: err.Error()})
			continue
		}
		result.Successful = append(result.Successful, sub.Email)
		result.PersonalizationScores[sub.Email] = score
	}

	if err := s.engine.Analytics.MarkSent(campaignID, len(result.Successful)); err != nil {
		return result, fmt.Errorf("marking campaign sent: %w", err)
	}

	metrics.ObserveSendCycle(time.Since(start), len(result.Successful), len(result.Failed))
	log.Info("send cycle completed",
		"successful", len(result.Successful),
		"failed", len(result.Failed),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// sendOne delivers to one subscriber and returns its personalization score.
func (s *Sender) sendOne(ctx context.Context, campaignID, subject string, req SendRequest, sub domain.Subscriber) (float64, error) {
	prefs := domain.NewPreferences()
	if sub.Preferences != nil {
		prefs = sub.Preferences.WithDefaults()
	}
	if prefs.UserID == nil {
		prefs.UserID = sub.UserID
	}

	content, err := s.engine.Personalizer.Personalize(req.Repositories, prefs)
	if err != nil {
		return 0, fmt.Errorf("personalizing: %w", err)
	}

	tpl := s.defaultTemplate()
	var variantID string
	if req.ExperimentID != "" {
		variant, err := s.assign(req.ExperimentID, sub)
		if err != nil {
			// The recipient still gets the default newsletter.
			s.log.Warn("experiment assignment failed", "experiment_id", req.ExperimentID, "email", sub.Email, "error", err)
		} else {
			variantID = variant.ID
			subject, tpl = applyVariant(variant.Config, s.cfg.DefaultSubject, tpl)
			if lvl := variant.Config.PersonalizationLevel; lvl != nil && *lvl == domain.PersonalizationNone {
				content = unranked(req.Repositories, content)
			}
		}
	}
	if tpl.RepositoryCount > 0 && len(content.Repositories) > tpl.RepositoryCount {
		content.Repositories = content.Repositories[:tpl.RepositoryCount]
		content.Scores = content.Scores[:tpl.RepositoryCount]
	}

	msg := &domain.EmailMessage{
		CampaignID: campaignID,
		Email:      sub.Email,
		FromName:   s.cfg.FromName,
		FromEmail:  s.cfg.FromEmail,
		Template:   tpl,
		Content:    content,
		Headers:    map[string]string{},
	}
	if variantID != "" {
		msg.ExperimentID = req.ExperimentID
		msg.VariantID = variantID
	}

	vars, err := s.templateVars(msg)
	if err != nil {
		return 0, err
	}
	if msg.Subject, err = s.renderer.Subject(subject, vars); err != nil {
		return 0, fmt.Errorf("rendering subject: %w", err)
	}
	if msg.HTMLContent, msg.TextContent, err = s.renderer.Body(tpl.Version, vars); err != nil {
		return 0, fmt.Errorf("rendering body: %w", err)
	}
	if u, _ := vars["unsubscribe_url"].(string); u != "" {
		msg.Headers["List-Unsubscribe"] = "<" + u + ">"
	}

	res, err := s.transport.Send(ctx, msg)
	if err != nil {
		return 0, err
	}
	if !res.Success {
		return 0, fmt.Errorf("delivery rejected: %s", res.Error)
	}

	payload := map[string]any{
		"personalization_score": content.PersonalizationScore,
		"segment_id":            content.Segment.ID,
		"message_id":            res.MessageID,
	}
	if variantID != "" {
		payload["variant_id"] = variantID
	}
	if _, err := s.engine.Analytics.TrackEngagement(domain.Engagement{
		CampaignID: campaignID,
		Recipient:  sub.Email,
		UserID:     sub.UserID,
		Kind:       domain.EngagementSent,
		Payload:    payload,
	}); err != nil {
		s.log.Warn("sent engagement not tracked", "campaign_id", campaignID, "error", err)
	}

	if variantID != "" {
		event := map[string]any{
			"campaign_id":           campaignID,
			"personalization_score": content.PersonalizationScore,
		}
		if _, err := s.engine.Experiments.RecordEvent(req.ExperimentID, variantID, sub.Email, sub.UserID, domain.EventEmailSent, event); err != nil {
			s.log.Warn("email_sent event not recorded", "experiment_id", req.ExperimentID, "error", err)
		}
	}
	return content.PersonalizationScore, nil
}

func (s *Sender) assign(experimentID string, sub domain.Subscriber) (domain.Variant, error) {
	a, err := s.engine.Experiments.Assign(experimentID, sub.Email, sub.UserID)
	if err != nil {
		return domain.Variant{}, err
	}
	exp, err := s.engine.Experiments.Get(experimentID)
	if err != nil {
		return domain.Variant{}, err
	}
	v, ok := exp.Variant(a.VariantID)
	if !ok {
		return domain.Variant{}, fmt.Errorf("variant %s missing from experiment %s", a.VariantID, experimentID)
	}
	return v, nil
}

func (s *Sender) defaultTemplate() domain.TemplateConfig {
	version := s.cfg.DefaultTemplateVer
	if !HasLayout(version) {
		version = DefaultTemplateVersion
	}
	return domain.TemplateConfig{
		Version:            version,
		RepositoryCount:    s.cfg.RepositoryCount,
		IncludeSocialProof: false,
		CTAText:            s.cfg.DefaultCTAText,
	}
}

// applyVariant overlays a variant's configuration on the defaults. A
// variant without a subject line gets the default subject, not the one
// the request asked for.
func applyVariant(vc domain.VariantConfig, defaultSubject string, tpl domain.TemplateConfig) (string, domain.TemplateConfig) {
	subject := defaultSubject
	if vc.SubjectLine != nil {
		subject = *vc.SubjectLine
	}
	if vc.TemplateVersion != nil && HasLayout(*vc.TemplateVersion) {
		tpl.Version = *vc.TemplateVersion
	}
	if vc.RepositoryCount != nil && *vc.RepositoryCount > 0 {
		tpl.RepositoryCount = *vc.RepositoryCount
	}
	if vc.IncludeSocialProof != nil {
		tpl.IncludeSocialProof = *vc.IncludeSocialProof
	}
	if vc.CTAText != nil {
		tpl.CTAText = *vc.CTAText
	}
	if vc.SendTimeHour != nil {
		h := *vc.SendTimeHour
		tpl.SendTimeHour = &h
	}
	return subject, tpl
}

// unranked keeps the candidate order for variants that opt out of
// personalization. Score, level and segment are still reported.
func unranked(candidates []domain.Repository, content domain.PersonalizedContent) domain.PersonalizedContent {
	n := len(candidates)
	if n > personalization.MaxRepositories {
		n = personalization.MaxRepositories
	}
	content.Repositories = append([]domain.Repository(nil), candidates[:n]...)
	content.Scores = make([]float64, n)
	content.Reasons = []string{}
	return content
}

// templateVars builds the liquid bindings for one message, wrapping every
// repository link with UTM parameters and, when a signer is set, click
// tracking.
func (s *Sender) templateVars(msg *domain.EmailMessage) (map[string]any, error) {
	link := tracking.Link{
		CampaignID:   msg.CampaignID,
		Recipient:    msg.Email,
		ExperimentID: msg.ExperimentID,
		VariantID:    msg.VariantID,
	}

	repos := make([]map[string]any, 0, len(msg.Content.Repositories))
	for _, r := range msg.Content.Repositories {
		href, err := s.trackedURL(link, r.FullName, r.URL)
		if err != nil {
			return nil, fmt.Errorf("link for %s: %w", r.FullName, err)
		}
		repos = append(repos, map[string]any{
			"name":        r.Name,
			"full_name":   r.FullName,
			"description": r.Description,
			"stars":       r.Stars,
			"language":    r.Language,
			"url":         href,
		})
	}

	vars := map[string]any{
		"heading":              "This week's trending repositories",
		"segment":              msg.Content.Segment.Name,
		"repositories":         repos,
		"repository_count":     len(repos),
		"reasons":              dedupe(msg.Content.Reasons),
		"include_social_proof": msg.Template.IncludeSocialProof,
		"cta_text":             msg.Template.CTAText,
		"cta_url":              "",
		"top_repository":       "",
		"unsubscribe_url":      "",
		"open_pixel_url":       "",
		"date":                 time.Now().UTC().Format("January 2, 2006"),
	}
	if len(repos) > 0 {
		vars["cta_url"] = repos[0]["url"]
		vars["top_repository"] = msg.Content.Repositories[0].FullName
	}
	if s.signer != nil {
		unsub := link
		unsub.LinkID = "unsubscribe"
		vars["unsubscribe_url"] = s.signer.UnsubscribeURL(unsub)
		vars["open_pixel_url"] = s.signer.OpenURL(link)
	}
	return vars, nil
}

func (s *Sender) trackedURL(link tracking.Link, linkID, target string) (string, error) {
	utm, err := s.engine.Analytics.UTM(link.CampaignID, linkID)
	if err != nil {
		return "", err
	}
	href, err := analytics.AddUTM(target, utm)
	if err != nil {
		return "", err
	}
	if s.signer == nil {
		return href, nil
	}
	link.LinkID = linkID
	link.URL = href
	return s.signer.ClickURL(link), nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
