package service

import (
	"context"
	"strings"
	"time"

	"golang-stock-digest/internal/digest/dto"
	"golang-stock-digest/internal/digest/repository"
	"golang-stock-digest/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// Sub-industry labels change rarely, so answers are cached for a day.
const classifierCacheTTL = 24 * time.Hour

// IndustryClassifier resolves the sub-industry labels for a company. Results
// drive the industry-context queries; failures degrade to the main industry.
type IndustryClassifier interface {
	ClassifySubIndustries(ctx context.Context, ticker, companyName, mainIndustry string) []string
}

type industryClassifier struct {
	logger *logger.Logger
	agent  repository.AgentRepository
	cache  *gocache.Cache
}

// NewIndustryClassifier creates an agent-backed IndustryClassifier with an
// in-memory result cache.
func NewIndustryClassifier(log *logger.Logger, agent repository.AgentRepository) IndustryClassifier {
	return &industryClassifier{
		logger: log,
		agent:  agent,
		cache:  gocache.New(classifierCacheTTL, time.Hour),
	}
}

func (c *industryClassifier) ClassifySubIndustries(ctx context.Context, ticker, companyName, mainIndustry string) []string {
	if cached, ok := c.cache.Get(ticker); ok {
		return cached.([]string)
	}

	reply, err := c.agent.Complete(ctx, BuildSubIndustryPrompt(ticker, companyName, mainIndustry), dto.CompleteOptions{
		MaxTokens:   200,
		Temperature: 0.3,
		Timeout:     30 * time.Second,
	})
	if err != nil {
		c.logger.Error("Sub-industry classification failed",
			logger.StringField("ticker", ticker),
			logger.ErrorField(err),
		)
		return defaultSubIndustries(mainIndustry)
	}

	content := cleanModelReply(reply)
	var subIndustries []string
	for _, part := range strings.Split(content, ",") {
		if p := strings.TrimSpace(part); p != "" {
			subIndustries = append(subIndustries, p)
		}
	}
	if len(subIndustries) == 0 {
		c.logger.Warn("Classifier returned no sub-industries, using main industry",
			logger.StringField("ticker", ticker),
		)
		return defaultSubIndustries(mainIndustry)
	}

	c.cache.Set(ticker, subIndustries, gocache.DefaultExpiration)
	return subIndustries
}

func defaultSubIndustries(mainIndustry string) []string {
	if mainIndustry == "" {
		return nil
	}
	return []string{mainIndustry}
}
