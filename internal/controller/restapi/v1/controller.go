package v1

import (
	"github.com/piyushgit011/image-process/internal/usecase"
	"github.com/piyushgit011/image-process/pkg/logger"
)

type V1 struct {
	jobs   usecase.JobUseCase
	stats  usecase.StatsUseCase
	logger logger.Interface
}
