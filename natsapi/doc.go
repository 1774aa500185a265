// Package natsapi lets sibling services verify access tokens over NATS
// request/reply without sharing signing keys.
//
// A request is {"token":"<access token>"}. A successful reply is
// {"ok":true,"user_id":1,"email":"...","role":"USER"}; failures carry
// ok=false and one of the ErrCode* values.
package natsapi
