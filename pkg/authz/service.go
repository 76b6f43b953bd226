package authz

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/sirupsen/logrus"
)

//go:embed defaults/model.conf defaults/policy.csv
var defaultFiles embed.FS

// Service provides helpers for enforcing authorization decisions.
type Service struct {
	cfg          Config
	enforcer     *casbin.Enforcer
	logger       *logrus.Entry
	flagProvider FlagProvider
	mu           sync.RWMutex
}

// NewService constructs a Service with the provided config.
func NewService(cfg Config) (*Service, error) {
	cfg = cfg.normalized()

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	m, err := loadModel(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	var enf *casbin.Enforcer
	if cfg.PolicyPath != "" {
		enf, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		var policy []byte
		policy, err = defaultFiles.ReadFile("defaults/policy.csv")
		if err != nil {
			return nil, configError("read default policy: %v", err)
		}
		enf, err = casbin.NewEnforcer(m, stringadapter.NewAdapter(string(policy)))
	}
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}

	provider := cfg.FlagProvider
	if provider == nil {
		if cfg.FlagPath != "" {
			provider = NewFileFlagProvider(cfg.FlagPath, cfg.FlagMode)
		} else {
			provider = StaticFlagProvider(cfg.FlagMode)
		}
	}

	return &Service{
		cfg:          cfg,
		enforcer:     enf,
		logger:       logger,
		flagProvider: provider,
	}, nil
}

func loadModel(path string) (model.Model, error) {
	if path != "" {
		m, err := model.NewModelFromFile(path)
		if err != nil {
			return nil, configError("load model %s: %v", path, err)
		}
		return m, nil
	}
	text, err := defaultFiles.ReadFile("defaults/model.conf")
	if err != nil {
		return nil, configError("read default model: %v", err)
	}
	m, err := model.NewModelFromString(string(text))
	if err != nil {
		return nil, configError("parse default model: %v", err)
	}
	return m, nil
}

func (s *Service) Mode() Mode {
	return s.flagProvider.Mode()
}

// Authorize returns an error if the request is denied. In shadow mode denials
// are only logged.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	mode := s.flagProvider.Mode()
	if mode == ModeDisabled {
		return nil
	}
	allowed, err := s.Check(ctx, req)
	if err != nil {
		return err
	}
	recordDecision(mode, allowed)
	if allowed {
		return nil
	}

	fields := logrus.Fields{
		"subject": req.Subject,
		"domain":  req.Domain,
		"object":  req.Object,
		"action":  req.Action,
		"mode":    mode,
	}
	if mode == ModeEnforce {
		s.logger.WithContext(ctx).WithFields(fields).Warn("authz denied request")
		return &ForbiddenError{Request: req}
	}
	s.logger.WithContext(ctx).WithFields(fields).Warn("authz shadow deny")
	return nil
}

// Check evaluates a request without returning an authorization error.
func (s *Service) Check(_ context.Context, req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(req.Subject, req.Domain, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

// ReloadPolicy reloads policy data from its source.
func (s *Service) ReloadPolicy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	s.logger.WithContext(ctx).Info("authz policy reloaded")
	return nil
}
