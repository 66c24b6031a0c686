package config

// DefaultConfigYAML returns a commented starter configuration.
func DefaultConfigYAML() string {
	return `# amlgate configuration
# Environment variables (AMLGATE_*) override values in this file.

token:
  name: AML Gated Token
  symbol: AMLG
  decimals: 24
  owner: owner.near
  # Minted to the owner on first start, in base units.
  total_supply: "1000000000000000000000000000"

registry:
  # Address of the risk oracle. Must be bound under "oracles".
  oracle: oracle.near
  # strict: only the known category names. open: any identifier.
  category_policy: strict
  # Seeded on first start only; afterwards use "amlgate registry set".
  thresholds:
    All: 5
    Gambling: 5
    Mixer: 1

oracles:
  oracle.near:
    table: ~/.amlgate/oracle.yaml
  # remote.near:
  #   grpc: 127.0.0.1:9091

gate:
  oracle_timeout: 5s
  notify_timeout: 10s

storage:
  # Empty keeps all state in memory.
  path: ~/.amlgate/amlgate.db

# receivers:
#   shop.near:
#     url: https://shop.example.com/amlgate/on-transfer

alerts: []
# - url: https://hooks.slack.com/services/...
#   format: slack
#   events: [aml_rejected, oracle_failure, configuration_error, tokens_burned]

audit:
  path: ~/.amlgate/audit.jsonl

graph:
  uri: ""
  # uri: neo4j://localhost:7687
  # username: neo4j
  # password: secret

server:
  port: 9090
  oracle_port: 9091
  # Per-caller transfer limits; "*" applies to everyone else.
  # rate_limits:
  #   "*":
  #     max_transfers: 60
  #     window: 1m

logging:
  level: info
  format: text
`
}

// DefaultOracleTableYAML returns a starter table for the reference oracle.
func DefaultOracleTableYAML() string {
	return `# Static classifications served by the reference oracle.
# Accounts not listed get "default"; remove it to fail closed.
default:
  category: All
  score: 1
accounts:
  casino.near:
    category: Gambling
    score: 7
  tumbler.near:
    category: Mixer
    score: 9
  exchange.near:
    category: None
    score: 0
`
}
