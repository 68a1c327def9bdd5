package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autobuzz/autobuzz/internal/config"
	"github.com/autobuzz/autobuzz/internal/models"
	"github.com/autobuzz/autobuzz/internal/service/ayrshare"
)

// ErrNotConfigured is returned when a dispatch run cannot start because the
// publishing API key is missing. It is the only error Run surfaces to
// trigger callers; everything else lands in the summary.
var ErrNotConfigured = errors.New("publishing API key is not configured")

// Failure reasons stored on posts. These are user-visible in the dashboard.
const (
	reasonMissingFields = "Missing content or platform"
	reasonNoProfile     = "User has not connected social accounts"
)

// PublishClient is the slice of the Ayrshare client the dispatcher needs.
type PublishClient interface {
	Publish(ctx context.Context, req ayrshare.PublishRequest) (*ayrshare.PublishResult, error)
}

// CredentialResolver resolves a user's publishing profile key. The boolean
// reports presence; absence is not an error.
type CredentialResolver interface {
	ResolveProfileKey(userID string) (string, bool, error)
}

type DispatchError struct {
	PostID string `json:"postId"`
	Error  string `json:"error"`
}

// DispatchSummary is the batch result contract shared by every trigger.
type DispatchSummary struct {
	PostsProcessed int             `json:"posts_processed"`
	Errors         []DispatchError `json:"errors"`
}

func (s *DispatchSummary) recordSuccess() {
	s.PostsProcessed++
}

func (s *DispatchSummary) recordFailure(postID, reason string) {
	s.PostsProcessed++
	s.Errors = append(s.Errors, DispatchError{PostID: postID, Error: reason})
}

// Dispatcher sweeps due scheduled posts and drives each through the publish
// state machine. It is trigger-agnostic: the cron endpoint, the manual
// trigger and the internal ticker all call the same Run.
type Dispatcher struct {
	config   *config.Config
	store    *PostStore
	resolver CredentialResolver
	client   PublishClient
	logger   *zap.Logger
}

func NewDispatcher(cfg *config.Config, store *PostStore, resolver CredentialResolver, client PublishClient, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		config:   cfg,
		store:    store,
		resolver: resolver,
		client:   client,
		logger:   logger,
	}
}

// Run executes one dispatch pass: recover stale claims, fetch the due-set,
// process each post independently. A run with zero due posts is a normal,
// empty summary. Concurrent runs partition the due-set between themselves
// through the claim write, so a post is published at most once per sweep.
func (d *Dispatcher) Run(ctx context.Context) (*DispatchSummary, error) {
	if strings.TrimSpace(d.config.Ayrshare.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	summary := &DispatchSummary{Errors: []DispatchError{}}
	now := time.Now().UTC()

	released, err := d.store.ReleaseStale(now.Add(-d.claimTimeout()))
	if err != nil {
		d.logger.Warn("Failed to release stale publish claims", zap.Error(err))
	} else if released > 0 {
		d.logger.Warn("Resolved posts stuck in publishing state", zap.Int64("count", released))
	}

	posts, err := d.store.FetchDue(now, d.config.Dispatch.BatchLimit)
	if err != nil {
		d.logger.Error("Failed to fetch due posts", zap.Error(err))
		summary.Errors = append(summary.Errors, DispatchError{PostID: "", Error: "Failed to fetch due posts"})
		return summary, nil
	}

	for i := range posts {
		d.processPost(ctx, now, &posts[i], summary)
	}

	d.logger.Info("Dispatch run completed",
		zap.Int("due", len(posts)),
		zap.Int("processed", summary.PostsProcessed),
		zap.Int("failed", len(summary.Errors)))

	return summary, nil
}

// processPost handles exactly one due post. Failures here never abort the
// run: every exit path is local to the post, and a panic is converted into
// that post's failure.
func (d *Dispatcher) processPost(ctx context.Context, now time.Time, post *models.Post, summary *DispatchSummary) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic while dispatching post",
				zap.String("post_id", post.ID),
				zap.Any("panic", r))
			d.fail(post.ID, "Internal error while publishing", now, summary)
		}
	}()

	claimed, err := d.store.ClaimForPublish(post.ID, now)
	if err != nil {
		summary.recordFailure(post.ID, "Failed to update post status")
		return
	}
	if !claimed {
		// A concurrent run already took this post; it counts it, not us.
		d.logger.Debug("Post claimed by another run", zap.String("post_id", post.ID))
		return
	}

	if strings.TrimSpace(post.Content) == "" || strings.TrimSpace(post.Platform) == "" {
		d.fail(post.ID, reasonMissingFields, now, summary)
		return
	}

	profileKey, found, err := d.resolver.ResolveProfileKey(post.UserID)
	if err != nil {
		d.logger.Error("Credential lookup failed", zap.String("post_id", post.ID), zap.Error(err))
		d.fail(post.ID, "Failed to look up publishing profile", now, summary)
		return
	}
	if !found {
		d.fail(post.ID, reasonNoProfile, now, summary)
		return
	}

	result, err := d.client.Publish(ctx, ayrshare.PublishRequest{
		Content:    post.Content,
		Platform:   post.Platform,
		ProfileKey: profileKey,
		ImageURL:   post.ImageURL,
	})
	if err != nil {
		d.logger.Warn("Publish request failed",
			zap.String("post_id", post.ID),
			zap.String("platform", post.Platform),
			zap.Error(err))
		d.fail(post.ID, publishFailureReason(err), now, summary)
		return
	}

	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "Unknown error"
		}
		d.fail(post.ID, reason, now, summary)
		return
	}

	externalRef := result.PostID
	if externalRef == "" && len(result.PostIDs) > 0 {
		externalRef = result.PostIDs[0].ID
	}

	if err := d.store.MarkPublished(post.ID, externalRef, time.Now().UTC()); err != nil {
		d.logger.Error("Post published but status write failed",
			zap.String("post_id", post.ID),
			zap.Error(err))
		summary.recordFailure(post.ID, "Published but failed to record result")
		return
	}

	d.logger.Info("Post published",
		zap.String("post_id", post.ID),
		zap.String("platform", post.Platform),
		zap.String("external_ref", externalRef))
	summary.recordSuccess()
}

func (d *Dispatcher) fail(postID, reason string, at time.Time, summary *DispatchSummary) {
	if err := d.store.MarkFailed(postID, reason, at); err != nil {
		d.logger.Error("Failed to record post failure",
			zap.String("post_id", postID),
			zap.Error(err))
	}
	summary.recordFailure(postID, reason)
}

func (d *Dispatcher) claimTimeout() time.Duration {
	timeout, err := time.ParseDuration(d.config.Dispatch.ClaimTimeout)
	if err != nil || timeout <= 0 {
		return 5 * time.Minute
	}
	return timeout
}

// publishFailureReason maps transport errors to messages safe to store on
// the post and show in the dashboard.
func publishFailureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Publishing API timed out"
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Publishing API timed out"
	}
	return "Failed to reach publishing API"
}
