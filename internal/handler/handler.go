package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/config"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/planning"
	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/repository"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository *repository.Repository
	manager    *planning.Manager
	translator ut.Translator

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, manager *planning.Manager) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		manager:    manager,
		translator: trans,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.With(h.myInfo).Get("/my-info", h.GetMyInfo)

		r.Route("/users", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Post("/", h.CreateUser)
			r.Get("/", h.GetAllUsers)
		})

		// 主数据：厨房人员与班次，修改仅限管理员
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.GetAllResources)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateResource)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.resource)
				r.Get("/", h.GetResource)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateResource)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.DeleteResource)
			})
		})

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.GetAllShifts)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateShift)
			r.Route("/{code}", func(r chi.Router) {
				r.Use(h.shift)
				r.Get("/", h.GetShift)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Patch("/", h.UpdateShift)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.DeleteShift)
			})
		})

		r.Route("/rule-config", func(r chi.Router) {
			r.Get("/", h.GetActiveRuleConfig)
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Put("/", h.UpdateActiveRuleConfig)
		})

		// 排班规划核心
		r.Route("/planning", func(r chi.Router) {
			r.Route("/{month}", func(r chi.Router) {
				r.Get("/overview", h.GetMonthOverview)
				r.Post("/generate", h.GeneratePlan)
			})
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.GetAllScenarios)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.scenario)
				r.Get("/versions", h.GetScenarioVersions)
				r.Post("/changes", h.ApplyChange)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin}), h.myInfo).Post("/approve", h.ApproveScenario)
			})
		})
	})
}
