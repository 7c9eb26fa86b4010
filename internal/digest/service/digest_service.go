package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-stock-digest/internal/digest/config"
	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/internal/digest/repository"
	"golang-stock-digest/internal/entity"
	"golang-stock-digest/pkg/common"
	"golang-stock-digest/pkg/logger"
	"golang-stock-digest/pkg/mailer"
	"golang-stock-digest/pkg/redis"
	"golang-stock-digest/pkg/telegram"
	"golang-stock-digest/pkg/utils"

	"gorm.io/datatypes"
)

const (
	contextNewsPerCompany = 5
	dailyGuardTTL         = 36 * time.Hour
)

// DigestService generates, stores, and delivers per-user daily digests.
type DigestService interface {
	GenerateDigestForUser(ctx context.Context, user *entity.User) (*dto.DigestContent, error)
	GenerateAndStore(ctx context.Context, userID uint, sendEmail bool) (*dto.DigestResponse, error)
	GetTodayDigest(ctx context.Context, userID uint) (*dto.DigestResponse, error)
	GetDigestHistory(ctx context.Context, userID uint, limit int) ([]dto.DigestResponse, error)
	SendDailyDigests(ctx context.Context)
}

type digestService struct {
	cfg    *config.Config
	logger *logger.Logger

	userRepo    repository.UserRepository
	companyRepo repository.CompanyRepository
	digestRepo  repository.DailyDigestRepository

	collector  NewsCollector
	summarizer Summarizer
	classifier IndustryClassifier
	enricher   ContentEnricher

	mailer   mailer.Mailer
	notifier telegram.Notifier
	redis    *redis.Client
}

// NewDigestService wires the digest orchestrator. classifier, enricher,
// notifier, and redisClient may be nil; the matching features are skipped.
func NewDigestService(
	cfg *config.Config,
	log *logger.Logger,
	userRepo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	digestRepo repository.DailyDigestRepository,
	collector NewsCollector,
	summarizer Summarizer,
	classifier IndustryClassifier,
	enricher ContentEnricher,
	mail mailer.Mailer,
	notifier telegram.Notifier,
	redisClient *redis.Client,
) DigestService {
	return &digestService{
		cfg:         cfg,
		logger:      log,
		userRepo:    userRepo,
		companyRepo: companyRepo,
		digestRepo:  digestRepo,
		collector:   collector,
		summarizer:  summarizer,
		classifier:  classifier,
		enricher:    enricher,
		mailer:      mail,
		notifier:    notifier,
		redis:       redisClient,
	}
}

// GenerateDigestForUser builds the digest content for one user: collect news
// per followed company, then summarize per company through a bounded worker
// gate. Every followed ticker appears in the result, companies without news
// get a fixed no-news section. Per-company failures never abort the digest.
func (s *digestService) GenerateDigestForUser(ctx context.Context, user *entity.User) (*dto.DigestContent, error) {
	companies, err := s.companyRepo.FindFollowedByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load followed companies: %w", err)
	}

	content := &dto.DigestContent{
		CompanyNews: make(map[string][]dto.CompanySummary, len(companies)),
		GeneratedAt: time.Now().UTC(),
	}
	if len(companies) == 0 {
		return content, nil
	}

	timezone := user.Timezone
	if timezone == "" {
		timezone = s.cfg.Digest.Timezone
	}
	targetDate, _ := utils.TargetDate(timezone)

	tickers := make([]string, 0, len(companies))
	names := make([]string, 0, len(companies))
	companyByTicker := make(map[string]entity.Company, len(companies))
	for _, c := range companies {
		tickers = append(tickers, c.Ticker)
		names = append(names, c.Name)
		companyByTicker[c.Ticker] = c
	}

	s.logger.Info("Generating digest",
		logger.IntField("user_id", int(user.ID)),
		logger.IntField("companies", len(companies)),
		logger.StringField("target_date", targetDate),
	)

	collected := s.collector.CollectCompanyNews(ctx, tickers, names, timezone,
		s.cfg.Digest.MaxResultsPerCompany, s.cfg.Digest.MaxConcurrentCollect)

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, s.cfg.Digest.MaxConcurrentSummarize)

	for _, t := range tickers {
		ticker := t
		newsItems := collected[ticker]

		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()

			company := companyByTicker[ticker]
			name := company.Name
			if name == "" {
				name = ticker
			}

			if len(newsItems) == 0 {
				mu.Lock()
				content.CompanyNews[ticker] = []dto.CompanySummary{noNewsSummary(ticker, name, targetDate)}
				mu.Unlock()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			if s.enricher != nil {
				newsItems = s.enricher.Enrich(ctx, newsItems)
			}

			if s.cfg.Digest.IncludeContextNews {
				subIndustries := []string(company.SubIndustries)
				if len(subIndustries) == 0 && s.classifier != nil {
					subIndustries = s.classifier.ClassifySubIndustries(ctx, ticker, name, company.MainIndustry)
					if len(subIndustries) > 0 && company.ID != 0 {
						if err := s.companyRepo.UpdateSubIndustries(ctx, company.ID, subIndustries); err != nil {
							s.logger.Warn("Failed to persist sub-industries",
								logger.StringField("ticker", ticker),
								logger.ErrorField(err),
							)
						}
					}
				}
				contextItems := s.collector.CollectContextNews(ctx, ContextRequest{
					Ticker:        ticker,
					CompanyName:   name,
					MainIndustry:  company.MainIndustry,
					SubIndustries: subIndustries,
					Timezone:      timezone,
					MaxResults:    contextNewsPerCompany,
				})
				newsItems = DedupeNewsItems(append(newsItems, contextItems...))
			}

			if len(newsItems) > summaryMaxItems {
				newsItems = newsItems[:summaryMaxItems]
			}

			summaryText := s.summarizer.SummarizeWithReferences(ctx, ticker, name, newsItems, targetDate, summaryMaxItems)

			mu.Lock()
			content.CompanyNews[ticker] = []dto.CompanySummary{{
				Ticker:  ticker,
				Title:   name + " 新闻摘要",
				Summary: summaryText,
				Source:  "AI 摘要",
				Items:   newsItems,
			}}
			mu.Unlock()
		})
	}
	wg.Wait()

	// Companies whose goroutine died still get a section.
	for _, ticker := range tickers {
		if _, ok := content.CompanyNews[ticker]; !ok {
			company := companyByTicker[ticker]
			name := company.Name
			if name == "" {
				name = ticker
			}
			content.CompanyNews[ticker] = []dto.CompanySummary{noNewsSummary(ticker, name, targetDate)}
		}
	}

	return content, nil
}

// GenerateAndStore generates the digest for a user, upserts today's row, and
// optionally emails it. A failed send leaves sent_at NULL; the stored digest
// is returned either way.
func (s *digestService) GenerateAndStore(ctx context.Context, userID uint, sendEmail bool) (*dto.DigestResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	content, err := s.GenerateDigestForUser(ctx, user)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode digest content: %w", err)
	}

	today := utils.DateIn(s.userLocation(user))
	digest, err := s.digestRepo.FindByUserAndDate(ctx, userID, today)
	switch {
	case err == nil:
		digest.Content = datatypes.JSON(raw)
		if err := s.digestRepo.Update(ctx, digest); err != nil {
			return nil, fmt.Errorf("failed to update digest: %w", err)
		}
	case errors.Is(err, repository.ErrDigestNotFound):
		digest = &entity.DailyDigest{
			UserID:  userID,
			Date:    today,
			Content: datatypes.JSON(raw),
		}
		if err := s.digestRepo.Create(ctx, digest); err != nil {
			return nil, fmt.Errorf("failed to store digest: %w", err)
		}
	default:
		return nil, err
	}

	if sendEmail {
		dateLabel := today.Format("2006/01/02")
		if s.mailer.SendDigestEmail(user.Email, content, dateLabel) {
			now := time.Now().UTC()
			digest.SentAt = &now
			if err := s.digestRepo.Update(ctx, digest); err != nil {
				s.logger.Error("Failed to record sent_at",
					logger.IntField("user_id", int(userID)),
					logger.ErrorField(err),
				)
			}
		}
	}

	return digestResponse(digest, content), nil
}

// GetTodayDigest returns the stored digest for the user's current day, or
// repository.ErrDigestNotFound when none exists yet.
func (s *digestService) GetTodayDigest(ctx context.Context, userID uint) (*dto.DigestResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	digest, err := s.digestRepo.FindByUserAndDate(ctx, userID, utils.DateIn(s.userLocation(user)))
	if err != nil {
		return nil, err
	}
	return digestResponse(digest, decodeContent(digest.Content)), nil
}

// GetDigestHistory returns the user's stored digests, newest first.
func (s *digestService) GetDigestHistory(ctx context.Context, userID uint, limit int) ([]dto.DigestResponse, error) {
	if limit <= 0 || limit > 30 {
		limit = 7
	}

	digests, err := s.digestRepo.FindHistory(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]dto.DigestResponse, 0, len(digests))
	for i := range digests {
		out = append(out, *digestResponse(&digests[i], decodeContent(digests[i].Content)))
	}
	return out, nil
}

// SendDailyDigests runs the daily batch: every user gets a digest generated,
// stored, and emailed. A Redis guard skips users already served today so an
// overlapping run cannot double-send. The admin notifier receives a run
// report when configured.
func (s *digestService) SendDailyDigests(ctx context.Context) {
	loc, err := time.LoadLocation(s.cfg.Scheduler.Timezone)
	if err != nil {
		loc = time.UTC
	}
	day := utils.DateIn(loc)
	dateLabel := day.Format("2006/01/02")

	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list digest recipients", logger.ErrorField(err))
		return
	}

	s.logger.Info("Daily digest run started",
		logger.StringField("date", dateLabel),
		logger.IntField("users", len(users)),
	)

	var results []telegram.DigestRunResult
	for i := range users {
		user := users[i]
		if !utils.ShouldContinue(ctx) {
			s.logger.Warn("Daily digest run interrupted", logger.IntField("processed", len(results)))
			break
		}

		if !s.acquireDailyGuard(ctx, user.ID, day) {
			s.logger.Info("Digest already sent today, skipping",
				logger.StringField("email", user.Email),
			)
			continue
		}

		result := telegram.DigestRunResult{Email: user.Email}
		resp, err := s.GenerateAndStore(ctx, user.ID, true)
		if err != nil {
			s.logger.Error("Failed to generate digest",
				logger.StringField("email", user.Email),
				logger.ErrorField(err),
			)
			result.Error = err.Error()
			s.releaseDailyGuard(ctx, user.ID, day)
		} else {
			result.Tickers = len(resp.Content.CompanyNews)
			result.EmailSent = resp.SentAt != nil
		}
		results = append(results, result)
	}

	sent := 0
	for _, r := range results {
		if r.EmailSent {
			sent++
		}
	}
	s.logger.Info("Daily digest run finished",
		logger.IntField("processed", len(results)),
		logger.IntField("emails_sent", sent),
	)

	if s.notifier != nil {
		if err := s.notifier.SendMessage(telegram.FormatDigestRunReport(dateLabel, results)); err != nil {
			s.logger.Error("Failed to send run report", logger.ErrorField(err))
		}
	}
}

// acquireDailyGuard claims the once-per-day send slot for a user. Redis being
// unavailable fails open: a duplicate email beats a missing one.
func (s *digestService) acquireDailyGuard(ctx context.Context, userID uint, day time.Time) bool {
	if s.redis == nil {
		return true
	}
	key := dailyGuardKey(userID, day)
	ok, err := s.redis.SetNX(ctx, key, 1, dailyGuardTTL).Result()
	if err != nil {
		s.logger.Warn("Daily guard check failed", logger.ErrorField(err))
		return true
	}
	return ok
}

func (s *digestService) releaseDailyGuard(ctx context.Context, userID uint, day time.Time) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, dailyGuardKey(userID, day)).Err(); err != nil {
		s.logger.Warn("Daily guard release failed", logger.ErrorField(err))
	}
}

func dailyGuardKey(userID uint, day time.Time) string {
	return fmt.Sprintf("%s:%d:%s", common.RedisKeyDailyDigestSent, userID, day.Format(utils.DateLayout))
}

func (s *digestService) userLocation(user *entity.User) *time.Location {
	timezone := user.Timezone
	if timezone == "" {
		timezone = s.cfg.Digest.Timezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// noNewsSummary is the section used for a followed company with no news. The
// wording is fixed so the email stays informative instead of empty.
func noNewsSummary(ticker, companyName, targetDate string) dto.CompanySummary {
	return dto.CompanySummary{
		Ticker: ticker,
		Title:  companyName + " 新闻摘要",
		Summary: fmt.Sprintf("**%s** 未搜索到关于 **%s (%s)** 的重大新闻。这可能意味着：\n\n"+
			"1. 该公司当日没有重要的公开新闻发布\n"+
			"2. 新闻尚未被索引或搜索服务暂时不可用\n\n"+
			"建议关注公司官网或财经新闻网站获取最新信息。", targetDate, companyName, ticker),
		Source: "AI 摘要",
		Items:  []dto.NewsItem{},
	}
}

func digestResponse(digest *entity.DailyDigest, content *dto.DigestContent) *dto.DigestResponse {
	return &dto.DigestResponse{
		ID:        digest.ID,
		Date:      digest.Date.Format(utils.DateLayout),
		Content:   content,
		SentAt:    digest.SentAt,
		CreatedAt: digest.CreatedAt,
	}
}

func decodeContent(raw datatypes.JSON) *dto.DigestContent {
	var content dto.DigestContent
	if err := json.Unmarshal(raw, &content); err != nil {
		return &dto.DigestContent{CompanyNews: map[string][]dto.CompanySummary{}}
	}
	return &content
}
