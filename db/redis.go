// db/redis.go
package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/veildata/veil/logging"
	"github.com/veildata/veil/model"
)

var (
	RedisClient   *redis.Client
	encryptionKey []byte
)

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	encryptionKey = []byte(viper.GetString("redis.encryptionKey"))
	if len(encryptionKey) != 32 {
		return fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Consent policies are cached encrypted: they reveal what a subject agreed
// to, which is itself sensitive. The cache serves the management read path
// only; the evaluator always reads the live store.

func CacheConsentPolicy(ctx context.Context, policy *model.ConsentPolicy) error {
	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to marshal consent policy: %w", err)
	}

	encryptedPolicy, err := encrypt(policyJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt consent policy: %w", err)
	}

	key := fmt.Sprintf("consent:%s", policy.ID)
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, key, base64.StdEncoding.EncodeToString(encryptedPolicy), defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache consent policy: %w", err)
	}

	logger.Debug("Consent policy cached successfully", zap.String("policyID", policy.ID))
	return nil
}

func GetCachedConsentPolicy(ctx context.Context, policyID string) (*model.ConsentPolicy, error) {
	key := fmt.Sprintf("consent:%s", policyID)
	encryptedPolicyStr, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("Consent policy not found in cache", zap.String("policyID", policyID))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get consent policy from cache: %w", err)
	}

	encryptedPolicy, err := base64.StdEncoding.DecodeString(encryptedPolicyStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode consent policy: %w", err)
	}

	policyJSON, err := decrypt(encryptedPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt consent policy: %w", err)
	}

	var policy model.ConsentPolicy
	err = json.Unmarshal(policyJSON, &policy)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal consent policy: %w", err)
	}

	logger.Debug("Consent policy retrieved from cache", zap.String("policyID", policyID))
	return &policy, nil
}

func DeleteCachedConsentPolicy(ctx context.Context, policyID string) error {
	key := fmt.Sprintf("consent:%s", policyID)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete consent policy from cache: %w", err)
	}
	logger.Debug("Consent policy deleted from cache", zap.String("policyID", policyID))
	return nil
}

func CacheCategory(ctx context.Context, category *model.DataCategory) error {
	categoryJSON, err := json.Marshal(category)
	if err != nil {
		return fmt.Errorf("failed to marshal category: %w", err)
	}

	key := fmt.Sprintf("category:%s", category.Key)
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, key, categoryJSON, defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache category: %w", err)
	}

	logger.Debug("Category cached successfully", zap.String("categoryKey", category.Key))
	return nil
}

func GetCachedCategory(ctx context.Context, categoryKey string) (*model.DataCategory, error) {
	key := fmt.Sprintf("category:%s", categoryKey)
	categoryJSON, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("Category not found in cache", zap.String("categoryKey", categoryKey))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get category from cache: %w", err)
	}

	var category model.DataCategory
	err = json.Unmarshal([]byte(categoryJSON), &category)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal category: %w", err)
	}

	logger.Debug("Category retrieved from cache", zap.String("categoryKey", categoryKey))
	return &category, nil
}

func DeleteCachedCategory(ctx context.Context, categoryKey string) error {
	key := fmt.Sprintf("category:%s", categoryKey)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete category from cache: %w", err)
	}
	logger.Debug("Category deleted from cache", zap.String("categoryKey", categoryKey))
	return nil
}

// Token records are cached encrypted and briefly: the revoked flag must
// propagate quickly, so the TTL here is deliberately short.

func CacheTokenRecord(ctx context.Context, record *model.TokenRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	encryptedRecord, err := encrypt(recordJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt token record: %w", err)
	}

	key := fmt.Sprintf("tokenrecord:%s", record.ID)
	err = RedisClient.Set(ctx, key, base64.StdEncoding.EncodeToString(encryptedRecord), 30*time.Second).Err()
	if err != nil {
		return fmt.Errorf("failed to cache token record: %w", err)
	}

	logger.Debug("Token record cached successfully", zap.String("tokenID", record.ID))
	return nil
}

func GetCachedTokenRecord(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	key := fmt.Sprintf("tokenrecord:%s", tokenID)
	encryptedRecordStr, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get token record from cache: %w", err)
	}

	encryptedRecord, err := base64.StdEncoding.DecodeString(encryptedRecordStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token record: %w", err)
	}

	recordJSON, err := decrypt(encryptedRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token record: %w", err)
	}

	var record model.TokenRecord
	err = json.Unmarshal(recordJSON, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal token record: %w", err)
	}

	return &record, nil
}

func DeleteCachedTokenRecord(ctx context.Context, tokenID string) error {
	key := fmt.Sprintf("tokenrecord:%s", tokenID)
	err := RedisClient.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete token record from cache: %w", err)
	}
	logger.Debug("Token record deleted from cache", zap.String("tokenID", tokenID))
	return nil
}
