package config

// EnvPrefix is passed to envconfig; every field tag already carries the full key.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	CartSyncUpsert         = "upsert"
	CartSyncReadThenBranch = "read_then_branch"

	GuardBackendLocal = "local"
	GuardBackendRedis = "redis"
)

const (
	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvAuthURL       = "STOREFRONT_AUTH_URL"
	EnvAuthAnonKey   = "STOREFRONT_AUTH_ANON_KEY"
	EnvAuthJWTSecret = "STOREFRONT_AUTH_JWT_SECRET"

	EnvAirtableAPIKey = "STOREFRONT_AIRTABLE_API_KEY"
	EnvAirtableBaseID = "STOREFRONT_AIRTABLE_BASE_ID"

	EnvEmailJSServiceID          = "STOREFRONT_EMAILJS_SERVICE_ID"
	EnvEmailJSCustomerTemplateID = "STOREFRONT_EMAILJS_CUSTOMER_TEMPLATE_ID"
	EnvEmailJSOperatorTemplateID = "STOREFRONT_EMAILJS_OPERATOR_TEMPLATE_ID"
	EnvEmailJSPublicKey          = "STOREFRONT_EMAILJS_PUBLIC_KEY"

	EnvCartSyncStrategy   = "STOREFRONT_CART_SYNC_STRATEGY"
	EnvOrdersGuardBackend = "STOREFRONT_ORDERS_GUARD_BACKEND"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
