package main

import (
	"context"
	"fmt"

	"ideaforge-api/internal/application/generation"
	"ideaforge-api/internal/infrastructure/messaging"
	apperrors "ideaforge-api/pkg/errors"
	"ideaforge-api/pkg/logger"
)

type generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// terminalCodes 重试也不会改变结果的错误，确认消息而不是重投
var terminalCodes = []apperrors.ErrorCode{
	apperrors.CodeGenerationFailed,
	apperrors.CodeBuildRequestNotFound,
	apperrors.CodeGenerationInProgress,
}

func isTerminal(err error) bool {
	for _, code := range terminalCodes {
		if apperrors.IsCode(err, code) {
			return true
		}
	}
	return false
}

// newGenerationHandler 消费一条异步生成请求
func newGenerationHandler(gen generator) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.GenerationMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("invalid generation payload: %w", err)
		}
		if payload.BuildRequestID == "" {
			return fmt.Errorf("generation payload has no build_request_id")
		}

		ctx = logger.WithContext(ctx, logger.BuildRequestIDKey, payload.BuildRequestID)

		opts := payload.Options
		result, err := gen.Generate(ctx, generation.Request{
			BuildRequestID: payload.BuildRequestID,
			UserID:         payload.UserID,
			Options:        &opts,
		})
		if err != nil {
			if isTerminal(err) {
				logger.Warn(ctx, "generation finished with terminal error", "error", err.Error())
				return nil
			}
			return err
		}

		logger.Info(ctx, "generation completed",
			"project_slug", result.Project.ProjectSlug,
			"preview_url", result.Storage.URL,
			"github_url", result.VCS.URL,
		)
		return nil
	}
}
