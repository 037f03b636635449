package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"order-gateway/internal/apperr"
	"order-gateway/internal/models"
	"order-gateway/internal/store"
	"order-gateway/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var cardNumberRe = regexp.MustCompile(`^[0-9]{12,19}$`)

// ValidCardNumber reports whether number is 12 to 19 digits
func ValidCardNumber(number string) bool {
	return cardNumberRe.MatchString(number)
}

// CatalogRepository is the slice of the store behind addresses, cards,
// shops and profiles
type CatalogRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	GetAddress(ctx context.Context, userID uuid.UUID, id int64) (*models.Address, error)
	CreateAddress(ctx context.Context, address *models.Address) error
	UpdateAddress(ctx context.Context, address *models.Address) error
	DeleteAddress(ctx context.Context, userID uuid.UUID, id int64) error

	ListCards(ctx context.Context, userID uuid.UUID) ([]models.Card, error)
	GetCard(ctx context.Context, userID uuid.UUID, id int64) (*models.Card, error)
	CreateCard(ctx context.Context, card *models.Card) error
	UpdateCard(ctx context.Context, card *models.Card) error
	DeleteCard(ctx context.Context, userID uuid.UUID, id int64) error

	ListShops(ctx context.Context) ([]models.Shop, error)
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	GetOrCreateShop(ctx context.Context, shop *models.Shop) (*models.Shop, bool, error)
	UpdateShop(ctx context.Context, shop *models.Shop) error
	DeleteShop(ctx context.Context, id int64) error
}

// AddressRequest creates an address
type AddressRequest struct {
	City      string `json:"city" binding:"required"`
	Address   string `json:"address" binding:"required"`
	Floor     string `json:"floor"`
	Apartment string `json:"apartment"`
	IsDefault bool   `json:"is_default"`
	Comment   string `json:"comment"`
}

// AddressUpdateRequest changes the supplied address fields
type AddressUpdateRequest struct {
	City      models.Optional[string] `json:"city"`
	Address   models.Optional[string] `json:"address"`
	Floor     models.Optional[string] `json:"floor"`
	Apartment models.Optional[string] `json:"apartment"`
	IsDefault models.Optional[bool]   `json:"is_default"`
	Comment   models.Optional[string] `json:"comment"`
}

// CardRequest creates a card
type CardRequest struct {
	Number    string `json:"number" binding:"required,cardnumber"`
	IsDefault bool   `json:"is_default"`
}

// CardUpdateRequest changes the supplied card fields
type CardUpdateRequest struct {
	Number    models.Optional[string] `json:"number"`
	IsDefault models.Optional[bool]   `json:"is_default"`
}

// ShopRequest registers a partner shop
type ShopRequest struct {
	Name        string `json:"name" binding:"required"`
	SiteURL     string `json:"site_url" binding:"required,url"`
	APIEndpoint string `json:"api_endpoint" binding:"required,url"`
	IsActive    *bool  `json:"is_active"`
}

// ShopUpdateRequest changes the supplied shop fields
type ShopUpdateRequest struct {
	Name        models.Optional[string] `json:"name"`
	SiteURL     models.Optional[string] `json:"site_url"`
	APIEndpoint models.Optional[string] `json:"api_endpoint"`
	IsActive    models.Optional[bool]   `json:"is_active"`
}

// ProfileUpdateRequest changes the supplied profile fields. Birthday and
// email may be cleared with null.
type ProfileUpdateRequest struct {
	Name     models.Optional[string] `json:"name"`
	Lastname models.Optional[string] `json:"lastname"`
	Birthday models.Optional[string] `json:"birthday"`
	Email    models.Optional[string] `json:"email"`
}

// CatalogService manages the user owned catalog and partner shops
type CatalogService struct {
	repo     CatalogRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{
		repo:     repo,
		validate: validator.New(),
		logger:   util.GetLogger(),
	}
}

// apply copies a present value into dst and rejects an explicit null
func apply[T any](field string, opt models.Optional[T], dst *T) error {
	if !opt.Set {
		return nil
	}
	if opt.Null {
		return apperr.ErrNullField.With("field", field)
	}
	*dst = opt.Value
	return nil
}

func mapNotFound(err error, notFound *apperr.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}

// ListAddresses returns the user's addresses, default first
func (s *CatalogService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.repo.ListAddresses(ctx, userID)
}

// GetAddress returns one of the user's addresses
func (s *CatalogService) GetAddress(ctx context.Context, userID uuid.UUID, id int64) (*models.Address, error) {
	address, err := s.repo.GetAddress(ctx, userID, id)
	if err != nil {
		return nil, mapNotFound(err, apperr.ErrAddressNotFound)
	}
	return address, nil
}

// CreateAddress stores a new address for the user
func (s *CatalogService) CreateAddress(ctx context.Context, userID uuid.UUID, req *AddressRequest) (*models.Address, error) {
	address := &models.Address{
		UserID:    userID,
		City:      req.City,
		Address:   req.Address,
		Floor:     req.Floor,
		Apartment: req.Apartment,
		IsDefault: req.IsDefault,
		Comment:   req.Comment,
	}
	if err := s.repo.CreateAddress(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// UpdateAddress applies the supplied fields to one of the user's addresses
func (s *CatalogService) UpdateAddress(ctx context.Context, userID uuid.UUID, id int64, req *AddressUpdateRequest) (*models.Address, error) {
	address, err := s.GetAddress(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	for _, err := range []error{
		apply("city", req.City, &address.City),
		apply("address", req.Address, &address.Address),
		apply("floor", req.Floor, &address.Floor),
		apply("apartment", req.Apartment, &address.Apartment),
		apply("is_default", req.IsDefault, &address.IsDefault),
		apply("comment", req.Comment, &address.Comment),
	} {
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateAddress(ctx, address); err != nil {
		return nil, mapNotFound(err, apperr.ErrAddressNotFound)
	}
	return address, nil
}

// DeleteAddress removes one of the user's addresses
func (s *CatalogService) DeleteAddress(ctx context.Context, userID uuid.UUID, id int64) error {
	return mapNotFound(s.repo.DeleteAddress(ctx, userID, id), apperr.ErrAddressNotFound)
}

// ListCards returns the user's cards, default first
func (s *CatalogService) ListCards(ctx context.Context, userID uuid.UUID) ([]models.Card, error) {
	return s.repo.ListCards(ctx, userID)
}

// GetCard returns one of the user's cards
func (s *CatalogService) GetCard(ctx context.Context, userID uuid.UUID, id int64) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, userID, id)
	if err != nil {
		return nil, mapNotFound(err, apperr.ErrCardNotFound)
	}
	return card, nil
}

// CreateCard stores a new card for the user
func (s *CatalogService) CreateCard(ctx context.Context, userID uuid.UUID, req *CardRequest) (*models.Card, error) {
	if !ValidCardNumber(req.Number) {
		return nil, apperr.ErrCardNumber
	}
	card := &models.Card{UserID: userID, Number: req.Number, IsDefault: req.IsDefault}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCard applies the supplied fields to one of the user's cards
func (s *CatalogService) UpdateCard(ctx context.Context, userID uuid.UUID, id int64, req *CardUpdateRequest) (*models.Card, error) {
	card, err := s.GetCard(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := apply("number", req.Number, &card.Number); err != nil {
		return nil, err
	}
	if err := apply("is_default", req.IsDefault, &card.IsDefault); err != nil {
		return nil, err
	}
	if !ValidCardNumber(card.Number) {
		return nil, apperr.ErrCardNumber
	}

	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return nil, mapNotFound(err, apperr.ErrCardNotFound)
	}
	return card, nil
}

// DeleteCard removes one of the user's cards
func (s *CatalogService) DeleteCard(ctx context.Context, userID uuid.UUID, id int64) error {
	return mapNotFound(s.repo.DeleteCard(ctx, userID, id), apperr.ErrCardNotFound)
}

// requireAdmin hides the shop section from everyone but administrators
func (s *CatalogService) requireAdmin(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return mapNotFound(err, apperr.ErrSectionNotFound)
	}
	if !user.IsAdmin {
		return apperr.ErrSectionNotFound
	}
	return nil
}

// ListShops returns all shops, active first
func (s *CatalogService) ListShops(ctx context.Context, userID uuid.UUID) ([]models.Shop, error) {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListShops(ctx)
}

// GetShop returns a shop
func (s *CatalogService) GetShop(ctx context.Context, userID uuid.UUID, id int64) (*models.Shop, error) {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, apperr.ErrShopNotFound)
	}
	return shop, nil
}

// CreateShop registers a shop, or returns the live one with the same name,
// site and endpoint
func (s *CatalogService) CreateShop(ctx context.Context, userID uuid.UUID, req *ShopRequest) (*models.Shop, error) {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return nil, err
	}

	key, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	shop, created, err := s.repo.GetOrCreateShop(ctx, &models.Shop{
		Name:        req.Name,
		SiteURL:     req.SiteURL,
		APIEndpoint: req.APIEndpoint,
		APIKey:      key,
		UserID:      uuid.NullUUID{UUID: userID, Valid: true},
		IsActive:    active,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("Shop registered", zap.Int64("shop_id", shop.ID), zap.String("name", shop.Name))
	}
	return shop, nil
}

// UpdateShop applies the supplied fields to a shop
func (s *CatalogService) UpdateShop(ctx context.Context, userID uuid.UUID, id int64, req *ShopUpdateRequest) (*models.Shop, error) {
	shop, err := s.GetShop(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	for _, err := range []error{
		apply("name", req.Name, &shop.Name),
		apply("site_url", req.SiteURL, &shop.SiteURL),
		apply("api_endpoint", req.APIEndpoint, &shop.APIEndpoint),
		apply("is_active", req.IsActive, &shop.IsActive),
	} {
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateShop(ctx, shop); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("shop with these fields already exists")
		}
		return nil, mapNotFound(err, apperr.ErrShopNotFound)
	}
	return shop, nil
}

// DeleteShop removes a shop
func (s *CatalogService) DeleteShop(ctx context.Context, userID uuid.UUID, id int64) error {
	if err := s.requireAdmin(ctx, userID); err != nil {
		return err
	}
	return mapNotFound(s.repo.DeleteShop(ctx, id), apperr.ErrShopNotFound)
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GetProfile returns the user's profile
func (s *CatalogService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, apperr.ErrObjectNotFound)
	}
	return user, nil
}

// UpdateProfile applies the supplied profile fields. Phone cannot change.
func (s *CatalogService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *ProfileUpdateRequest) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := apply("name", req.Name, &user.Name); err != nil {
		return nil, err
	}
	if err := apply("lastname", req.Lastname, &user.Lastname); err != nil {
		return nil, err
	}

	if req.Birthday.Set {
		if req.Birthday.Null {
			user.Birthday = nil
		} else {
			d, err := models.ParseDate(req.Birthday.Value)
			if err != nil {
				return nil, apperr.ErrBirthdayFormat
			}
			user.Birthday = &d
		}
	}

	if req.Email.Set {
		if req.Email.Null {
			user.Email = nil
		} else {
			if err := s.validate.Var(req.Email.Value, "required,email"); err != nil {
				return nil, apperr.ErrEmailFormat
			}
			email := req.Email.Value
			user.Email = &email
		}
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
