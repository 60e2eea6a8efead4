package extractor

import (
	"fmt"

	"reelgrab/pkg/auth"
	"reelgrab/pkg/config"
	"reelgrab/pkg/extractor/markup"
	"reelgrab/pkg/logger"
	"reelgrab/pkg/pacing"
)

// Build assembles the orchestrator from cfg.Extraction.Strategies. A non-nil
// session is attached to the page and embed scrapers.
func Build(cfg *config.Config, sess *auth.Session, log logger.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if len(cfg.Extraction.Strategies) == 0 {
		return nil, fmt.Errorf("no extraction strategies configured")
	}

	strategies := make([]Strategy, 0, len(cfg.Extraction.Strategies))
	for _, name := range cfg.Extraction.Strategies {
		var s Strategy
		switch name {
		case config.StrategyThirdParty:
			parser, err := markup.New(cfg.ThirdParty.Parser)
			if err != nil {
				return nil, err
			}
			s = NewThirdParty(cfg.ThirdParty, parser, log)
		case config.StrategyPage:
			p := NewPageScrape(cfg.Page, log)
			applySession(p.Client(), sess)
			s = p
		case config.StrategyEmbed:
			e := NewEmbed(cfg.Embed, log)
			applySession(e.Client(), sess)
			s = e
		case config.StrategyBrowser:
			policy, err := PolicyByName(cfg.Browser.CandidatePolicy)
			if err != nil {
				return nil, err
			}
			s = NewBrowser(cfg.Browser, log, WithCandidatePolicy(policy))
		default:
			return nil, fmt.Errorf("unknown extraction strategy %q", name)
		}
		strategies = append(strategies, s)
	}

	return NewOrchestrator(strategies,
		WithDelay(pacing.Uniform{Min: cfg.Extraction.DelayMin, Max: cfg.Extraction.DelayMax}),
		WithLogger(log),
	), nil
}

type sessionClient interface {
	SetSession(sessionID, csrfToken string)
	SetHeader(key, value string)
}

func applySession(c sessionClient, sess *auth.Session) {
	if sess == nil || sess.SessionID == "" {
		return
	}
	c.SetSession(sess.SessionID, sess.CSRFToken)
	if sess.UserAgent != "" {
		c.SetHeader("User-Agent", sess.UserAgent)
	}
}
