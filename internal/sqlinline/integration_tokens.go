package sqlinline

// QSelectIntegrationToken returns the provider secret; blank rows read as missing.
const QSelectIntegrationToken = `--sql a1643d8f-a67b-453c-9da4-d781adfb879f
select token
from integration_tokens
where provider = $1::text
  and btrim(token) <> ''
limit 1;
`

// QUpsertIntegrationToken stores or rotates a provider secret, merging the
// supplied properties and counting rotations.
const QUpsertIntegrationToken = `--sql 509e570e-4ce1-41ba-b4d2-8939900b56ac
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb) || jsonb_build_object('rotations', 0))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties
        || coalesce($3::jsonb, '{}'::jsonb)
        || jsonb_build_object('rotations', coalesce((integration_tokens.properties->>'rotations')::int, 0) + 1),
    updated_at = now();
`
