package classifier

// imageRule is one entry in the ordered image-regex rule list. Rules are
// scanned top-to-bottom; only the first match contributes, per spec.md
// §4.1 step 2.
type imageRule struct {
	pattern string
	key     string
}

// profileData is the literal, curated knowledge table. Order is
// significant for imageRules only; portRules/envRules are keyed maps.
var profileData = []*ArchetypeProfile{
	{
		RegistryKey:  "postgresql",
		Family:       FamilyDatabase,
		DisplayName:  "PostgreSQL",
		ExporterName: "postgres_exporter",
		ExporterPort: 9187,
		GoldenMetrics: []GoldenMetric{
			{Name: "pg_up", PromQL: "pg_up", Description: "Whether the Postgres exporter can reach the database", PanelHint: "stat", Requires: "exporter"},
			{Name: "pg_connections", PromQL: "pg_stat_database_numbackends", Description: "Active connections per database", PanelHint: "timeseries", Requires: "exporter"},
			{Name: "pg_replication_lag", PromQL: "pg_replication_lag_seconds", Description: "Streaming replication lag in seconds", PanelHint: "timeseries", Requires: "exporter,replicas>1"},
			{Name: "pg_cache_hit_ratio", PromQL: "rate(pg_stat_database_blks_hit[5m]) / (rate(pg_stat_database_blks_hit[5m]) + rate(pg_stat_database_blks_read[5m]))", Description: "Buffer cache hit ratio", PanelHint: "gauge", Requires: "exporter"},
		},
		AlertRules: []AlertRule{
			{Name: "PostgresDown", PromQL: "pg_up == 0", Severity: "critical", For: "2m", Summary: "PostgreSQL instance is down", Requires: "exporter"},
			{Name: "PostgresTooManyConnections", PromQL: "sum(pg_stat_database_numbackends) by (instance) > 0.8 * sum(pg_settings_max_connections) by (instance)", Severity: "warning", For: "5m", Summary: "PostgreSQL connections approaching max_connections", Requires: "exporter"},
			{Name: "PostgresReplicationLagHigh", PromQL: "pg_replication_lag_seconds > 30", Severity: "warning", For: "5m", Summary: "PostgreSQL replication lag is high", Requires: "exporter,replicas>1"},
		},
		CommunityDashboardIDs: []int{9628},
		HealthPrerequisites:   []string{"liveness probe", "readiness probe"},
		Recommendations:       []string{"deploy postgres_exporter sidecar", "enable pg_stat_statements"},
	},
	{
		RegistryKey:  "mysql",
		Family:       FamilyDatabase,
		DisplayName:  "MySQL",
		ExporterName: "mysqld_exporter",
		ExporterPort: 9104,
		GoldenMetrics: []GoldenMetric{
			{Name: "mysql_up", PromQL: "mysql_up", Description: "Whether the MySQL exporter can reach the database", PanelHint: "stat", Requires: "exporter"},
			{Name: "mysql_connections", PromQL: "mysql_global_status_threads_connected", Description: "Connected threads", PanelHint: "timeseries", Requires: "exporter"},
			{Name: "mysql_slow_queries", PromQL: "rate(mysql_global_status_slow_queries[5m])", Description: "Slow query rate", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules: []AlertRule{
			{Name: "MySQLDown", PromQL: "mysql_up == 0", Severity: "critical", For: "2m", Summary: "MySQL instance is down", Requires: "exporter"},
			{Name: "MySQLReplicationLagHigh", PromQL: "mysql_slave_lag_seconds > 30", Severity: "warning", For: "5m", Summary: "MySQL replication lag is high", Requires: "exporter,replicas>1"},
		},
		CommunityDashboardIDs: []int{7362},
		Recommendations:       []string{"deploy mysqld_exporter sidecar"},
	},
	{
		RegistryKey:  "redis",
		Family:       FamilyCache,
		DisplayName:  "Redis",
		ExporterName: "redis_exporter",
		ExporterPort: 9121,
		GoldenMetrics: []GoldenMetric{
			{Name: "redis_up", PromQL: "redis_up", Description: "Whether the Redis exporter can reach the instance", PanelHint: "stat", Requires: "exporter"},
			{Name: "redis_memory_used", PromQL: "redis_memory_used_bytes", Description: "Memory used by Redis", PanelHint: "timeseries", Requires: "exporter"},
			{Name: "redis_hit_ratio", PromQL: "rate(redis_keyspace_hits_total[5m]) / (rate(redis_keyspace_hits_total[5m]) + rate(redis_keyspace_misses_total[5m]))", Description: "Keyspace hit ratio", PanelHint: "gauge", Requires: "exporter"},
		},
		AlertRules: []AlertRule{
			{Name: "RedisDown", PromQL: "redis_up == 0", Severity: "critical", For: "2m", Summary: "Redis instance is down", Requires: "exporter"},
			{Name: "RedisMemoryHigh", PromQL: "redis_memory_used_bytes / redis_memory_max_bytes > 0.9", Severity: "warning", For: "5m", Summary: "Redis memory usage is high", Requires: "exporter"},
		},
		CommunityDashboardIDs: []int{763},
		Recommendations:       []string{"deploy redis_exporter sidecar", "set maxmemory-policy"},
	},
	{
		// A dedicated profile, resolving the documented Python-source
		// misclassification (spec.md §9 Open Question) that routed
		// Memcached images at the Redis profile as "close enough".
		RegistryKey:  "memcached",
		Family:       FamilyCache,
		DisplayName:  "Memcached",
		ExporterName: "memcached_exporter",
		ExporterPort: 9150,
		GoldenMetrics: []GoldenMetric{
			{Name: "memcached_up", PromQL: "memcached_up", Description: "Whether the Memcached exporter can reach the instance", PanelHint: "stat", Requires: "exporter"},
			{Name: "memcached_evictions", PromQL: "rate(memcached_commands_total{command=\"evicted\"}[5m])", Description: "Eviction rate", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules: []AlertRule{
			{Name: "MemcachedDown", PromQL: "memcached_up == 0", Severity: "critical", For: "2m", Summary: "Memcached instance is down", Requires: "exporter"},
		},
		CommunityDashboardIDs: []int{11991},
		Recommendations:       []string{"deploy memcached_exporter sidecar"},
	},
	{
		RegistryKey:  "mongodb",
		Family:       FamilyDatabase,
		DisplayName:  "MongoDB",
		ExporterName: "mongodb_exporter",
		ExporterPort: 9216,
		GoldenMetrics: []GoldenMetric{
			{Name: "mongodb_up", PromQL: "mongodb_up", Description: "Whether the MongoDB exporter can reach the instance", PanelHint: "stat", Requires: "exporter"},
			{Name: "mongodb_connections", PromQL: "mongodb_connections{state=\"current\"}", Description: "Current connections", PanelHint: "timeseries", Requires: "exporter"},
			{Name: "mongodb_replication_lag", PromQL: "mongodb_mongod_replset_member_replication_lag", Description: "Replica set member lag", PanelHint: "timeseries", Requires: "exporter,replicas>1"},
		},
		AlertRules: []AlertRule{
			{Name: "MongoDown", PromQL: "mongodb_up == 0", Severity: "critical", For: "2m", Summary: "MongoDB instance is down", Requires: "exporter"},
		},
		CommunityDashboardIDs: []int{2583},
		Recommendations:       []string{"deploy mongodb_exporter sidecar"},
	},
	{
		RegistryKey:  "elasticsearch",
		Family:       FamilySearchEngine,
		DisplayName:  "Elasticsearch",
		ExporterName: "elasticsearch_exporter",
		ExporterPort: 9114,
		GoldenMetrics: []GoldenMetric{
			{Name: "es_cluster_status", PromQL: "elasticsearch_cluster_health_status", Description: "Cluster health status", PanelHint: "stat", Requires: "exporter"},
			{Name: "es_jvm_heap_used", PromQL: "elasticsearch_jvm_memory_used_bytes{area=\"heap\"}", Description: "JVM heap used", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules: []AlertRule{
			{Name: "ElasticsearchClusterRed", PromQL: "elasticsearch_cluster_health_status{color=\"red\"} == 1", Severity: "critical", For: "2m", Summary: "Elasticsearch cluster status is red", Requires: "exporter"},
		},
		CommunityDashboardIDs: []int{2322},
		Recommendations:       []string{"deploy elasticsearch_exporter sidecar"},
	},
	{
		RegistryKey:  "kafka",
		Family:       FamilyMessageQueue,
		DisplayName:  "Kafka",
		ExporterName: "kafka_exporter",
		ExporterPort: 9308,
		GoldenMetrics: []GoldenMetric{
			{Name: "kafka_consumer_lag", PromQL: "kafka_consumergroup_lag", Description: "Consumer group lag", PanelHint: "timeseries", Requires: "exporter"},
			{Name: "kafka_broker_count", PromQL: "kafka_brokers", Description: "Broker count", PanelHint: "stat", Requires: "exporter"},
		},
		AlertRules: []AlertRule{
			{Name: "KafkaConsumerLagHigh", PromQL: "kafka_consumergroup_lag > 10000", Severity: "warning", For: "10m", Summary: "Kafka consumer lag is high", Requires: "exporter"},
		},
		CommunityDashboardIDs: []int{7589},
		Recommendations:       []string{"deploy kafka_exporter or JMX exporter sidecar"},
	},
	{
		RegistryKey:           "rabbitmq",
		Family:                FamilyMessageQueue,
		DisplayName:           "RabbitMQ",
		ExporterName:          "rabbitmq_builtin",
		ExporterPort:          15692,
		ExposesBuiltinMetrics: true,
		GoldenMetrics: []GoldenMetric{
			{Name: "rabbitmq_queue_messages", PromQL: "rabbitmq_queue_messages", Description: "Messages ready in queue", PanelHint: "timeseries", Requires: "exporter"},
			{Name: "rabbitmq_connections", PromQL: "rabbitmq_connections", Description: "Open connections", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules: []AlertRule{
			{Name: "RabbitMQQueueBacklog", PromQL: "rabbitmq_queue_messages_ready > 10000", Severity: "warning", For: "10m", Summary: "RabbitMQ queue backlog is high", Requires: "exporter"},
		},
		CommunityDashboardIDs: []int{10991},
		Recommendations:       []string{"enable the rabbitmq_prometheus plugin"},
	},
	{
		RegistryKey:  "nats",
		Family:       FamilyMessageQueue,
		DisplayName:  "NATS",
		ExporterName: "nats_exporter",
		ExporterPort: 7777,
		GoldenMetrics: []GoldenMetric{
			{Name: "nats_connections", PromQL: "gnatsd_varz_connections", Description: "Current connections", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules:            []AlertRule{},
		CommunityDashboardIDs: []int{2279},
		Recommendations:       []string{"deploy nats_exporter sidecar"},
	},
	{
		RegistryKey:           "nginx",
		Family:                FamilyWebServer,
		DisplayName:           "nginx",
		ExporterName:          "nginx_exporter",
		ExporterPort:          9113,
		GoldenMetrics: []GoldenMetric{
			{Name: "nginx_requests", PromQL: "rate(nginx_http_requests_total[5m])", Description: "Request rate", PanelHint: "timeseries", Requires: "exporter"},
			{Name: "nginx_active_connections", PromQL: "nginx_connections_active", Description: "Active connections", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules:            []AlertRule{},
		CommunityDashboardIDs: []int{12708},
		Recommendations:       []string{"enable the stub_status module and deploy nginx-prometheus-exporter"},
	},
	{
		RegistryKey:  "haproxy",
		Family:       FamilyReverseProxy,
		DisplayName:  "HAProxy",
		ExporterName: "haproxy_builtin",
		ExporterPort: 8405,
		ExposesBuiltinMetrics: true,
		GoldenMetrics: []GoldenMetric{
			{Name: "haproxy_backend_up", PromQL: "haproxy_backend_up", Description: "Backend availability", PanelHint: "stat", Requires: "exporter"},
		},
		AlertRules:            []AlertRule{},
		CommunityDashboardIDs: []int{12693},
		Recommendations:       []string{"enable the haproxy Prometheus exporter module"},
	},
	{
		RegistryKey:  "envoy",
		Family:       FamilyAPIGateway,
		DisplayName:  "Envoy",
		ExporterName: "envoy_builtin",
		ExporterPort: 9901,
		ExposesBuiltinMetrics: true,
		GoldenMetrics: []GoldenMetric{
			{Name: "envoy_upstream_rq_total", PromQL: "rate(envoy_cluster_upstream_rq_total[5m])", Description: "Upstream request rate", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules:            []AlertRule{},
		CommunityDashboardIDs: []int{11022},
		Recommendations:       []string{"expose the Envoy admin /stats/prometheus endpoint"},
	},
	{
		RegistryKey:  "prometheus",
		Family:       FamilyMonitoring,
		DisplayName:  "Prometheus",
		ExporterName: "prometheus_builtin",
		ExporterPort: 9090,
		ExposesBuiltinMetrics: true,
		GoldenMetrics: []GoldenMetric{
			{Name: "prometheus_tsdb_head_series", PromQL: "prometheus_tsdb_head_series", Description: "In-memory series", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules:            []AlertRule{},
		CommunityDashboardIDs: []int{3662},
		Recommendations:       []string{},
	},
	{
		RegistryKey:  "grafana",
		Family:       FamilyMonitoring,
		DisplayName:  "Grafana",
		ExporterName: "grafana_builtin",
		ExporterPort: 3000,
		ExposesBuiltinMetrics: true,
		GoldenMetrics: []GoldenMetric{
			{Name: "grafana_http_request_duration", PromQL: "grafana_http_request_duration_seconds_sum", Description: "HTTP request duration", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules:            []AlertRule{},
		CommunityDashboardIDs: []int{3590},
		Recommendations:       []string{},
	},
	{
		RegistryKey:  "fluentd",
		Family:       FamilyLogging,
		DisplayName:  "Fluentd/Fluent Bit",
		ExporterName: "fluentd_builtin",
		ExporterPort: 24231,
		ExposesBuiltinMetrics: true,
		GoldenMetrics: []GoldenMetric{
			{Name: "fluentd_output_errors", PromQL: "rate(fluentd_output_status_num_errors_total[5m])", Description: "Output error rate", PanelHint: "timeseries", Requires: "exporter"},
		},
		AlertRules:            []AlertRule{},
		CommunityDashboardIDs: []int{7752},
		Recommendations:       []string{},
	},
}

// imageRules is ordered top-to-bottom; the first match wins per profile
// scan, per spec.md §4.1 step 2.
var imageRules = []imageRule{
	{pattern: `(?i)postgres(ql)?[:/]`, key: "postgresql"},
	{pattern: `(?i)(mysql|mariadb)[:/]`, key: "mysql"},
	{pattern: `(?i)memcached[:/]`, key: "memcached"},
	{pattern: `(?i)redis[:/]`, key: "redis"},
	{pattern: `(?i)mongo(db)?[:/]`, key: "mongodb"},
	{pattern: `(?i)elasticsearch[:/]`, key: "elasticsearch"},
	{pattern: `(?i)(cp-kafka|confluentinc/cp-kafka|bitnami/kafka|kafka)[:/]`, key: "kafka"},
	{pattern: `(?i)rabbitmq[:/]`, key: "rabbitmq"},
	{pattern: `(?i)nats[:/]`, key: "nats"},
	{pattern: `(?i)nginx[:/]`, key: "nginx"},
	{pattern: `(?i)haproxy[:/]`, key: "haproxy"},
	{pattern: `(?i)envoyproxy/envoy[:/]`, key: "envoy"},
	{pattern: `(?i)prom/prometheus[:/]`, key: "prometheus"},
	{pattern: `(?i)grafana/grafana[:/]`, key: "grafana"},
	{pattern: `(?i)fluent(d|-bit)[:/]`, key: "fluentd"},
}

// portRules maps a well-known port to the profile it is evidence for.
var portRules = map[int]string{
	5432:  "postgresql",
	3306:  "mysql",
	11211: "memcached",
	6379:  "redis",
	27017: "mongodb",
	9200:  "elasticsearch",
	9092:  "kafka",
	5672:  "rabbitmq",
	4222:  "nats",
	80:    "nginx",
	8404:  "haproxy",
	9901:  "envoy",
	9090:  "prometheus",
	3000:  "grafana",
	24224: "fluentd",
}

// envRules maps an environment variable name to the profile it is
// evidence for. Multiple hits for the same profile contribute only once,
// per spec.md §4.1 step 4.
var envRules = map[string]string{
	"POSTGRES_DB":       "postgresql",
	"POSTGRES_USER":     "postgresql",
	"POSTGRES_PASSWORD": "postgresql",
	"PGDATA":            "postgresql",
	"MYSQL_DATABASE":    "mysql",
	"MYSQL_ROOT_PASSWORD": "mysql",
	"MEMCACHED_CACHE_SIZE": "memcached",
	"REDIS_PASSWORD":    "redis",
	"MONGO_INITDB_ROOT_USERNAME": "mongodb",
	"MONGO_INITDB_DATABASE":      "mongodb",
	"discovery.type":    "elasticsearch",
	"ES_JAVA_OPTS":      "elasticsearch",
	"KAFKA_BROKER_ID":   "kafka",
	"KAFKA_ZOOKEEPER_CONNECT": "kafka",
	"RABBITMQ_DEFAULT_USER":   "rabbitmq",
	"NATS_URL":          "nats",
}
