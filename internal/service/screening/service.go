package screening

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
	"go.uber.org/zap"
)

var tierNotes = map[model.ScreeningTier]string{
	model.ScreeningTierBlock: "ご回答から、すぐに専門家の支援が必要な可能性があります。" +
		"地域の相談窓口や医療機関に連絡してください。緊急の場合は119番に連絡してください。",
	model.ScreeningTierRefer: "ご回答から、専門のカウンセラーへの相談をおすすめします。" +
		"引き続きサービスをご利用いただけますが、専門家の支援を受けることを検討してください。",
	model.ScreeningTierPass: "スクリーニングへのご回答ありがとうございました。カウンセラーとの予約に進むことができます。",
}

// Evaluator はスクリーニングの判定と結果の保存を行います
type Evaluator struct {
	repo       repository.ScreeningRepository
	users      repository.UserRepository
	classifier Classifier
	now        func() time.Time
}

func NewEvaluator(repo repository.ScreeningRepository, users repository.UserRepository, classifier Classifier) *Evaluator {
	return &Evaluator{
		repo:       repo,
		users:      users,
		classifier: classifier,
		now:        time.Now,
	}
}

// Questions は固定の質問一覧を返します
func (e *Evaluator) Questions() []string {
	questions := make([]string, len(model.ScreeningQuestions))
	copy(questions, model.ScreeningQuestions)
	return questions
}

// Evaluate は回答を判定し、結果を新しいレコードとして保存します
// 回答が不完全な場合は何も保存せずにmodel.ErrIncompleteSubmissionを返します
// 登録されていないユーザーの場合はmodel.ErrUserNotFoundです
func (e *Evaluator) Evaluate(ctx context.Context, sub model.ScreeningSubmission) (result *model.ScreeningResult, err error) {
	ctx, done := utils.BeginSubsegment(ctx, "ScreeningEvaluator.Evaluate")
	defer func() { done(err) }()

	if strings.TrimSpace(sub.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrInvalidUser)
	}
	if _, err := e.users.GetByID(ctx, sub.UserID); err != nil {
		return nil, err
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	tier := e.classifier.Classify(sub.Answers)
	notes := tierNotes[tier]
	result = &model.ScreeningResult{
		ID:        utils.NewID(),
		UserID:    sub.UserID,
		Result:    tier,
		Notes:     &notes,
		CreatedAt: e.now().UTC(),
	}

	if err := e.repo.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save screening result: %w", err)
	}

	// 回答内容は個人情報のためログに出さない
	logger.L().Info("screening evaluated",
		zap.String("user_id", result.UserID),
		zap.String("result", string(result.Result)))

	return result, nil
}

// Latest は直近のスクリーニング結果を返します
func (e *Evaluator) Latest(ctx context.Context, userID string) (*model.ScreeningResult, error) {
	return e.repo.LatestByUser(ctx, userID)
}
