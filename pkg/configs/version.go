package configs

// AppName 应用名称，用于服务名、默认桶名与数据库名.
const AppName = "propvault"

// AppVersion 应用版本，构建时可通过 -ldflags "-X" 覆盖.
var AppVersion = "0.3.0"
