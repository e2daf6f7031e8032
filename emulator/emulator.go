package emulator

// Config contains configuration of the ledger gateway emulator.
type Config struct {
	Port            string `yaml:"port"`             // port the gateway REST API listens on
	Owner           string `yaml:"owner"`            // platform owner address
	FeePercentage   uint64 `yaml:"fee_percentage"`   // initial platform fee in percents
	FinalityMillis  int64  `yaml:"finality_millis"`  // delay between acceptance and a final receipt
	TimeoutSeconds  int64  `yaml:"timeout_seconds"`  // read and write timeout of the REST API
	VerifySignature bool   `yaml:"verify_signature"` // verify envelope signatures before execution
}
