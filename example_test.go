package sagaflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/petrijr/sagaflow"
)

// Example_run demonstrates submitting an order and driving it to completion
// synchronously on an in-memory engine.
func Example_run() {
	ctx := context.Background()

	runner, err := sagaflow.NewLocalRunner()
	if err != nil {
		log.Fatal(err)
	}
	runner.Inventory.Seed("gopher-plush", 25)

	order := sagaflow.Order{
		OrderID:       "order-1001",
		ProductID:     "gopher-plush",
		Quantity:      2,
		Amount:        2499,
		PaymentMethod: "CREDIT_CARD",
		Email:         "gopher@example.com",
	}
	if _, err := runner.Engine.Submit(ctx, order); err != nil {
		log.Fatal(err)
	}

	inst, err := runner.Engine.Run(ctx, order.OrderID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("order %s finished with status %s\n", inst.OrderID, inst.Status)
	// Output: order order-1001 finished with status SUCCEEDED
}

// Example_workers demonstrates asynchronous processing: submission returns
// an acknowledgment and the worker pool drives the workflow.
func Example_workers() {
	ctx := context.Background()

	runner, err := sagaflow.NewLocalRunner()
	if err != nil {
		log.Fatal(err)
	}
	runner.Inventory.Seed("gopher-plush", 25)

	if err := runner.StartWorkers(ctx, 2); err != nil {
		log.Fatal(err)
	}
	defer runner.Stop()

	order := sagaflow.Order{
		OrderID:       "order-1002",
		ProductID:     "gopher-plush",
		Quantity:      1,
		Amount:        1249,
		PaymentMethod: "CREDIT_CARD",
		Email:         "gopher@example.com",
	}
	inst, err := runner.Engine.Submit(ctx, order)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("submitted with status %s\n", inst.Status)

	inst, err = runner.Wait(ctx, order.OrderID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("finished with status %s\n", inst.Status)
	// Output:
	// submitted with status PENDING
	// finished with status SUCCEEDED
}
