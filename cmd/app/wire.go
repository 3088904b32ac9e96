//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/pave-study/internal/bootstrap"
	"github.com/yanqian/pave-study/internal/domain/assistant"
	"github.com/yanqian/pave-study/internal/domain/retrieval"
	"github.com/yanqian/pave-study/internal/infra/config"
	httpiface "github.com/yanqian/pave-study/internal/interface/http"
	"github.com/yanqian/pave-study/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideChatGPTClient,
		provideLLM,
		provideEmbedder,
		provideObjectStorage,
		provideQuestionStore,
		provideVectorIndex,
		provideJobQueue,
		provideSearchConfig,
		provideIndexer,
		provideRouterConfig,
		provideGeneratorConfig,
		provideExecutorConfig,
		provideAssistantConfig,
		retrieval.NewEngine,
		assistant.NewRouter,
		assistant.NewGenerator,
		assistant.NewExecutor,
		assistant.NewService,
		wire.Bind(new(retrieval.SearchService), new(*retrieval.Engine)),
		wire.Bind(new(retrieval.IndexService), new(*retrieval.Indexer)),
		wire.Bind(new(assistant.Searcher), new(*retrieval.Engine)),
		wire.Bind(new(assistant.ContentGenerator), new(*assistant.Generator)),
		wire.Bind(new(assistant.Classifier), new(*assistant.Router)),
		wire.Bind(new(assistant.Dispatcher), new(*assistant.Executor)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
