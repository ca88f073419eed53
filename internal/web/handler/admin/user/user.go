// Package user provides handlers for managing users (CRUD) in the
// admin area. All routes require the manageUsers right.
package user

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/dinesh-gnapitech/insite/internal/auth"
	"github.com/dinesh-gnapitech/insite/internal/config"
	"github.com/dinesh-gnapitech/insite/internal/db/models"
	"github.com/dinesh-gnapitech/insite/internal/web/handler"
)

const (
	// Path is the base path for user management.
	Path = handler.RootPath + "admin/user"

	// AdminApplication scopes the manageUsers right check.
	AdminApplication = "config"

	// TemplateList is the template for listing users.
	TemplateList = "admin/user/list"
	// TemplateForm is the template for creating/updating a user.
	TemplateForm = "admin/user/form"

	// DefaultPageSize for pagination.
	DefaultPageSize = 25
)

// Service provides CRUD operations for users.
type Service struct {
	cfg       *config.Config
	sub       *auth.Subsystem
	db        *gorm.DB
	validator *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, sub *auth.Subsystem) error {
	if app == nil || cfg == nil || sub == nil {
		return errors.New(handler.ErrNilACSFatalLogMsg)
	}

	s.cfg = cfg
	s.sub = sub
	s.db = sub.DB()
	s.validator = validator.New()

	app.Get(Path, s.List)
	app.Get(Path+"/new", s.New)
	app.Post(Path, s.Create)
	app.Get(Path+"/:id/edit", s.Edit)
	app.Post(Path+"/:id", s.Update)
	app.Post(Path+"/:id/delete", s.Delete)

	return nil
}

// authorize gates every admin route on the manageUsers right.
func (s *Service) authorize(c *fiber.Ctx) *auth.Decision {
	u := handler.User(c)

	d := u.Authorize(c.Context(), auth.Check{
		Right:          models.RightManageUsers,
		Application:    AdminApplication,
		RedirectOnFail: c.Method() == fiber.MethodGet,
	})

	return &d
}

// List shows users with simple pagination and search.
func (s *Service) List(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize := c.QueryInt("pageSize", DefaultPageSize)
	if pageSize < 1 || pageSize > 100 {
		pageSize = DefaultPageSize
	}

	search := c.Query("search", "")

	var (
		users      []models.User
		totalCount int64
		tx         = s.db.Model(&models.User{})
	)

	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where("username LIKE ? OR display_name LIKE ? OR email LIKE ?", like, like, like)
	}

	if err := tx.Count(&totalCount).Error; err != nil {
		log.Error().Err(err).Msg("count users failed")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, fiber.Map{
			"Title":  "Users",
			"Error":  "Failed to load users",
			"Search": search,
		}, handler.BaseLayout)
	}

	totalPages := int((totalCount + int64(pageSize) - 1) / int64(pageSize))
	if totalPages == 0 {
		totalPages = 1
	}

	if page > totalPages {
		page = totalPages
	}

	offset := (page - 1) * pageSize
	if err := tx.Preload("Roles").Order("username ASC").Limit(pageSize).Offset(offset).Find(&users).Error; err != nil {
		log.Error().Err(err).Msg("query users failed")

		return c.Status(fiber.StatusInternalServerError).Render(TemplateList, fiber.Map{
			"Title":  "Users",
			"Error":  "Failed to load users",
			"Search": search,
		}, handler.BaseLayout)
	}

	return c.Render(TemplateList, fiber.Map{
		"Title":       "Users",
		"Users":       users,
		"CurrentUser": handler.User(c).Name(),
		"Search":      search,
		"Page":        page,
		"PageSize":    pageSize,
		"TotalItems":  totalCount,
		"TotalPages":  totalPages,
		"HasPrev":     page > 1,
		"HasNext":     page < totalPages,
		"PrevPage":    page - 1,
		"NextPage":    page + 1,
	}, handler.BaseLayout)
}

// New shows the creation form.
func (s *Service) New(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	roles, err := s.allRoles()
	if err != nil {
		log.Error().Err(err).Msg("failed to load roles")
		return fiber.ErrInternalServerError
	}

	return c.Render(TemplateForm, fiber.Map{
		"Title":    "New User",
		"User":     models.User{},
		"IsCreate": true,
		"Roles":    roles,
	}, handler.BaseLayout)
}

// userForm is the shared create/update payload.
type userForm struct {
	Username    string `form:"username"     validate:"required,min=3,max=100"`
	DisplayName string `form:"display_name" validate:"max=200"`
	Email       string `form:"email"        validate:"omitempty,email,max=255"`
	Password    string `form:"password"`
	Locked      bool   `form:"locked"`
	RoleIDs     []uint `form:"role_ids"`
}

// Create creates a new user.
func (s *Service) Create(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	var in userForm
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderFormError(c, "New User", true, nil, err)
	}

	user := models.User{
		Username:    in.Username,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		Locked:      in.Locked,
	}

	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			log.Error().Err(err).Msg("password hash failed")
			return fiber.ErrInternalServerError
		}

		user.PasswordHash = hash
	}

	roles, err := s.rolesByID(in.RoleIDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to load roles")
		return fiber.ErrInternalServerError
	}

	user.Roles = roles

	if err := s.db.Create(&user).Error; err != nil {
		log.Error().Err(err).Str("username", in.Username).Msg("create user failed")
		return s.renderFormError(c, "New User", true, &user, err)
	}

	return c.Redirect(Path)
}

// Edit shows the update form.
func (s *Service) Edit(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	user, err := s.load(c)
	if err != nil {
		return err
	}

	roles, err := s.allRoles()
	if err != nil {
		log.Error().Err(err).Msg("failed to load roles")
		return fiber.ErrInternalServerError
	}

	return c.Render(TemplateForm, fiber.Map{
		"Title":    "Edit User",
		"User":     user,
		"IsCreate": false,
		"Roles":    roles,
	}, handler.BaseLayout)
}

// Update applies the form to an existing user. An empty password
// leaves the stored hash untouched.
func (s *Service) Update(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	user, err := s.load(c)
	if err != nil {
		return err
	}

	var in userForm
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	if err := s.validator.Struct(in); err != nil {
		return s.renderFormError(c, "Edit User", false, user, err)
	}

	user.Username = in.Username
	user.DisplayName = in.DisplayName
	user.Email = in.Email
	user.Locked = in.Locked

	if in.Password != "" {
		hash, err := hashPassword(in.Password)
		if err != nil {
			log.Error().Err(err).Msg("password hash failed")
			return fiber.ErrInternalServerError
		}

		user.PasswordHash = hash
	}

	roles, err := s.rolesByID(in.RoleIDs)
	if err != nil {
		log.Error().Err(err).Msg("failed to load roles")
		return fiber.ErrInternalServerError
	}

	if err := s.db.Save(user).Error; err != nil {
		log.Error().Err(err).Uint64("id", user.ID).Msg("update user failed")
		return s.renderFormError(c, "Edit User", false, user, err)
	}

	if err := s.db.Model(user).Association("Roles").Replace(roles); err != nil {
		log.Error().Err(err).Uint64("id", user.ID).Msg("update user roles failed")
		return fiber.ErrInternalServerError
	}

	return c.Redirect(Path)
}

// Delete removes a user. The current user cannot delete itself.
func (s *Service) Delete(c *fiber.Ctx) error {
	if d := s.authorize(c); !d.OK {
		return handler.Fail(c, *d)
	}

	user, err := s.load(c)
	if err != nil {
		return err
	}

	if user.Username == handler.User(c).Name() {
		return fiber.NewError(fiber.StatusBadRequest, "cannot delete the current user")
	}

	if err := s.db.Select("Roles").Delete(user).Error; err != nil {
		log.Error().Err(err).Uint64("id", user.ID).Msg("delete user failed")
		return fiber.ErrInternalServerError
	}

	return c.Redirect(Path)
}

func (s *Service) load(c *fiber.Ctx) (*models.User, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return nil, fiber.ErrBadRequest
	}

	var user models.User
	if err := s.db.Preload("Roles").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.ErrNotFound
		}

		return nil, fiber.ErrInternalServerError
	}

	return &user, nil
}

func (s *Service) allRoles() ([]models.Role, error) {
	var roles []models.Role
	err := s.db.Order("name ASC").Find(&roles).Error

	return roles, err
}

func (s *Service) rolesByID(ids []uint) ([]models.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var roles []models.Role
	err := s.db.Where("id IN ?", ids).Find(&roles).Error

	return roles, err
}

func (s *Service) renderFormError(c *fiber.Ctx, title string, isCreate bool, user *models.User, cause error) error {
	roles, err := s.allRoles()
	if err != nil {
		return fiber.ErrInternalServerError
	}

	if user == nil {
		user = &models.User{}
	}

	return c.Status(fiber.StatusBadRequest).Render(TemplateForm, fiber.Map{
		"Title":    title,
		"User":     user,
		"IsCreate": isCreate,
		"Roles":    roles,
		"Error":    cause.Error(),
	}, handler.BaseLayout)
}

// hashPassword stores new passwords as bcrypt. Legacy MD5 digests are
// still accepted on login but never written.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
