// Package bridge provides synchronous request-response over a service's
// asynchronous request and response channels.
//
// A bridge keeps one subscription on the response source and matches each
// response to the waiting caller by request ID:
//
//	b, err := bridge.NewSyncAsyncBridge(ctx, client, client.Responses())
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	resp, err := b.SendAndWait(ctx, &GetOrder{BaseRequest: contracts.NewBaseRequest("web"), OrderID: id}, 5*time.Second)
package bridge
