package repositories

import (
	"errors"

	"github.com/bcetconnect/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user and membership lookups
type UserRepository interface {
	GetUserByID(id uint) (*models.User, error)
	GetAllUserIDs() ([]uint, error)
	GetUserIDsByRole(role string) ([]uint, error)
	GetCommunityIDs(userID uint) ([]uint, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetAllUserIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Pluck("id", &ids).Error
	return ids, err
}

func (r *PostgresUserRepository) GetUserIDsByRole(role string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Where("role = ?", role).Pluck("id", &ids).Error
	return ids, err
}

func (r *PostgresUserRepository) GetCommunityIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.CommunityMembership{}).Where("user_id = ?", userID).Pluck("community_id", &ids).Error
	return ids, err
}
