// Command ksprep-lambda runs the preprocessor as an AWS Lambda function, configured from
// environment variables (see ksprep.LoadConfig).
package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/zpiroux/ksprep"
)

func main() {
	config, err := ksprep.LoadConfig()
	if err != nil {
		log.Fatalf("ksprep.LoadConfig() error: %v", err)
	}

	p, err := ksprep.New(config)
	if err != nil {
		log.Fatalf("ksprep.New() error: %v", err)
	}

	lambda.Start(p.HandleRequest)
}
