package model

import "time"

// ================ Config ================
type AgentModelConfig struct {
	Model         string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens     int     `envconfig:"AGENT_MAX_TOKENS" default:"2000"`
	Temperature   float32 `envconfig:"AGENT_TEMPERATURE" default:"0.5"`
	SchemaRetries int     `envconfig:"AGENT_SCHEMA_RETRIES" default:"1"`
	MaxIterations int     `envconfig:"AGENT_MAX_ITERATIONS" default:"2"`
}

type EmbeddingConfig struct {
	Model      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	Dimensions int32  `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`
}

type RetrievalConfig struct {
	Backend            string  `envconfig:"RETRIEVAL_BACKEND" default:"qdrant"`
	ItemsCollection    string  `envconfig:"RETRIEVAL_ITEMS_COLLECTION" default:"items"`
	ReviewsCollection  string  `envconfig:"RETRIEVAL_REVIEWS_COLLECTION" default:"reviews"`
	ReviewItemField    string  `envconfig:"RETRIEVAL_REVIEW_ITEM_FIELD" default:"item_id"`
	TextField          string  `envconfig:"RETRIEVAL_TEXT_FIELD" default:"text"`
	PriceField         string  `envconfig:"RETRIEVAL_PRICE_FIELD" default:"price"`
	ImageField         string  `envconfig:"RETRIEVAL_IMAGE_FIELD" default:"first_large_image"`
	PrefetchLimit      int     `envconfig:"RETRIEVAL_PREFETCH_LIMIT" default:"20"`
	TopK               int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	ReviewTopK         int     `envconfig:"RETRIEVAL_REVIEW_TOP_K" default:"15"`
	RRFConstant        float64 `envconfig:"RETRIEVAL_RRF_CONSTANT" default:"60"`
	ItemsCatalogPath   string  `envconfig:"RETRIEVAL_ITEMS_CATALOG"`
	ReviewsCatalogPath string  `envconfig:"RETRIEVAL_REVIEWS_CATALOG"`
}

type CheckpointConfig struct {
	Backend string        `envconfig:"CHECKPOINT_BACKEND" default:"redis"`
	DSN     string        `envconfig:"CHECKPOINT_DSN"`
	TTL     time.Duration `envconfig:"CHECKPOINT_TTL" default:"0"`
}

type ToolsConfig struct {
	ExecuteSequentially bool `envconfig:"TOOLS_EXECUTE_SEQUENTIALLY" default:"false"`
}

type ResponsePromptConfig struct {
	BusinessType string `envconfig:"PROMPT_BUSINESS_TYPE" default:"online store"`
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"ShopAssist"`
}

type FeedbackConfig struct {
	Backend string `envconfig:"FEEDBACK_BACKEND" default:"redis"`
	Stream  string `envconfig:"FEEDBACK_STREAM" default:"feedback"`
}
