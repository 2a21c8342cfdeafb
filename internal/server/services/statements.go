package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/logging"
	sc "github.com/dmitrijs2005/bankapp/internal/server/config"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/dmitrijs2005/bankapp/internal/timex"
	"github.com/google/uuid"
)

const (
	statementLinkValidity = 15 * time.Minute
	statementRows         = maxHistoryLimit
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectStore is the part of *s3.Client used for uploads.
type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// urlPresigner is the part of *s3.PresignClient used for download links.
type urlPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Statement is an exported CSV and a temporary link to download it.
type Statement struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// StatementService exports transaction history to S3 compatible storage.
type StatementService struct {
	transfers *TransferService
	config    *sc.Config
	logger    logging.Logger
	clock     timex.Clock

	mu        sync.Mutex
	store     objectStore
	presigner urlPresigner
}

func NewStatementService(transfers *TransferService, logger logging.Logger, cfg *sc.Config) *StatementService {
	return &StatementService{
		transfers: transfers,
		config:    cfg,
		logger:    logger,
		clock:     timex.SystemClock,
	}
}

// Enabled reports whether a bucket is configured.
func (s *StatementService) Enabled() bool {
	return s.config.S3Bucket != ""
}

func (s *StatementService) clients(ctx context.Context) (objectStore, urlPresigner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil && s.presigner != nil {
		return s.store, s.presigner, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	s.store = client
	s.presigner = s3.NewPresignClient(client)
	return s.store, s.presigner, nil
}

// Export uploads the user's statement and returns a presigned download link.
func (s *StatementService) Export(ctx context.Context, user *models.User) (*Statement, error) {
	if !s.Enabled() {
		return nil, common.ErrorDisabled
	}

	txs, err := s.transfers.History(ctx, user.ID, statementRows)
	if err != nil {
		return nil, err
	}

	body, err := renderStatement(user, txs)
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "render statement", err)
	}

	store, presigner, err := s.clients(ctx)
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "s3 client", err)
	}

	bucket := s.config.S3Bucket
	key := fmt.Sprintf("statements/%d/%s.csv", user.ID, uuid.NewString())

	_, err = store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "upload statement", err)
	}

	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(statementLinkValidity))
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "presign statement", err)
	}

	return &Statement{Key: key, URL: req.URL, ExpiresAt: s.clock().Add(statementLinkValidity)}, nil
}

func renderStatement(user *models.User, txs []*models.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"account", user.AccountNumber},
		{"holder", user.Username},
		{"balance", user.Balance.StringFixed(2)},
		{},
		{"date", "id", "type", "direction", "counterparty", "amount", "status"},
	}
	for _, t := range txs {
		direction, counterparty := "in", t.SenderUsername
		if t.SenderID != nil && *t.SenderID == user.ID {
			direction, counterparty = "out", t.ReceiverUsername
		}
		if t.Type == common.TransactionDeposit {
			counterparty = ""
		}
		rows = append(rows, []string{
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.ID,
			t.Type,
			direction,
			counterparty,
			t.Amount.StringFixed(2),
			t.Status,
		})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
