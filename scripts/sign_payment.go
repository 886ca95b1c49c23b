package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/vaarahi/storefront/internal/domain/payment"
)

// Prints the signature the checkout widget would send for an order and
// payment id, so the verification endpoints can be exercised by hand.
func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: go run scripts/sign_payment.go <order_id> <payment_id>")
	}
	_ = godotenv.Load()

	secret := os.Getenv("RAZORPAY_KEY_SECRET")
	if secret == "" {
		log.Fatal("RAZORPAY_KEY_SECRET is not set")
	}

	orderID, paymentID := os.Args[1], os.Args[2]
	signature := payment.Sign(secret, orderID, paymentID)

	fmt.Printf("Order ID:   %s\n", orderID)
	fmt.Printf("Payment ID: %s\n", paymentID)
	fmt.Printf("Signature:  %s\n", signature)

	if !payment.VerifySignature(secret, orderID, paymentID, signature) {
		log.Fatal("Signature verification failed")
	}
	fmt.Println("Signature verified successfully!")
}
