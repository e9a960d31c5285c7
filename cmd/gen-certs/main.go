package main

import (
	"flag"
	"log"
	"strings"

	"github.com/pairsig/pairsig-go/pkg/pairsig/tlsnet"
)

func main() {
	var (
		outputDir = flag.String("output", "certs", "directory to write certificates")
		namesFlag = flag.String("names", "initiator,responder", "comma-separated peer names (exactly two)")
		keyBits   = flag.Int("key-bits", 3072, "RSA key size for CA and peer certs")
		days      = flag.Int("days", 365, "certificate validity in days")
		localhost = flag.Bool("localhost", true, "include localhost SANs for local demos")
	)
	flag.Parse()

	names := strings.Split(*namesFlag, ",")
	opts := tlsnet.CertOptions{KeyBits: *keyBits, ValidityDays: *days, IncludeLocalhost: *localhost}
	if err := tlsnet.GenerateCertificates(names, *outputDir, opts); err != nil {
		log.Fatalf("generate certificates: %v", err)
	}
	log.Printf("wrote CA and certificates for %s to %s", strings.Join(names, ", "), *outputDir)
}
