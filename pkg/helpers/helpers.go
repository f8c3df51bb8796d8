package helpers

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func InitKafkaProducer(conf *config.Config) (*kafka.Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":        conf.Kafka.BootstrapServers,
		"message.send.max.retries": 3,
		"request.timeout.ms":       30000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "create kafka producer")
	}
	return producer, nil
}

func InitPostgres(ctx context.Context, conf *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, conf.PostgresUrl())
	if err != nil {
		return nil, eris.Wrap(err, "connect postgres")
	}
	return pool, nil
}

func InitMongo(ctx context.Context, conf *config.Config) (*mongo.Database, error) {
	auth := options.Client().SetAuth(options.Credential{
		Username: conf.Mongo.Username,
		Password: conf.Mongo.Password,
	})
	url := options.Client().ApplyURI(conf.Mongo.Url)
	client, err := mongo.Connect(ctx, auth, url)
	if err != nil {
		return nil, eris.Wrap(err, "connect mongo")
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, eris.Wrap(err, "ping mongo")
	}

	return client.Database(conf.Mongo.Dbname), nil
}

func InitRedis(ctx context.Context, conf *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.Db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "ping redis")
	}

	return rdb, nil
}
