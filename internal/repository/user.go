package repository

import (
	"context"

	"mailsentry/internal/models"
	"mailsentry/pkg/database"
)

type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) Create(user *models.User) error {
	return database.GetDB().Create(user).Error
}

func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	return r.FindByUsernameCtx(context.Background(), username)
}

func (r *UserRepository) FindByUsernameCtx(ctx context.Context, username string) (*models.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var user models.User
	err := database.GetDB().WithContext(ctx).Where("username = ? AND is_active = 1", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(id string) (*models.User, error) {
	return r.FindByIDCtx(context.Background(), id)
}

func (r *UserRepository) FindByIDCtx(ctx context.Context, id string) (*models.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var user models.User
	err := database.GetDB().WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindAll() ([]models.User, error) {
	var users []models.User
	err := database.GetDB().Order("created_at ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := database.GetDB().Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Count() (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.User{}).Count(&count).Error
	return count, err
}

func (r *UserRepository) UpdatePassword(id, hashedPassword string) error {
	return database.GetDB().Model(&models.User{}).Where("id = ?", id).Update("password", hashedPassword).Error
}

func (r *UserRepository) UpdateRole(username, role string) error {
	return database.GetDB().Model(&models.User{}).Where("username = ?", username).Update("role", role).Error
}
